package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/domain"
)

// OrderRow is one line of the entity picker.
type OrderRow struct {
	ID       uint
	Number   string
	Customer string
	Items    int
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func esc(s string) string { return templ.EscapeString(s) }

// ModelsPage lists the open models and the orders a model can be opened on.
func ModelsPage(models []application.StoredModel, orders []OrderRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w,
			`<!doctype html><html><head><meta charset="utf-8"><title>Detached models</title>`,
			`<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"></script>`,
			`</head><body data-signals="{handle: '', initialize: false, orderId: ''}">`,
			`<h1>Detached models</h1><div id="flash"></div>`,
		); err != nil {
			return err
		}
		if err := ModelTable(models).Render(ctx, w); err != nil {
			return err
		}
		if err := write(w, `<h2>Orders</h2><table><thead><tr><th>#</th><th>Number</th><th>Customer</th><th>Items</th><th></th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, o := range orders {
			if err := write(w,
				`<tr><td>`, fmt.Sprint(o.ID), `</td><td>`, esc(o.Number), `</td><td>`, esc(o.Customer), `</td><td>`, fmt.Sprint(o.Items), `</td>`,
				`<td><button data-on-click="$orderId = '`, fmt.Sprint(o.ID), `'; @post('/ui/models/open')">open</button></td></tr>`,
			); err != nil {
				return err
			}
		}
		return write(w, `</tbody></table><div id="model"></div></body></html>`)
	})
}

// ModelTable renders the store content; it is also the fragment swapped in
// after a model is opened or closed.
func ModelTable(models []application.StoredModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := write(w, `<table id="models"><thead><tr><th>Handle</th><th>Entity</th><th>Pending</th><th>Last used</th><th></th></tr></thead><tbody>`); err != nil {
			return err
		}
		if len(models) == 0 {
			if err := write(w, `<tr><td colspan="5">no open models</td></tr>`); err != nil {
				return err
			}
		}
		for _, m := range models {
			if err := write(w,
				`<tr><td><code>`, esc(m.Handle), `</code></td><td>`, esc(m.Entity), `</td><td>`, fmt.Sprint(m.Pending), `</td>`,
				`<td>`, m.LastUsed.Format(time.RFC3339), `</td>`,
				`<td><button data-on-click="$handle = '`, esc(m.Handle), `'; @post('/ui/models/resolve')">resolve</button></td></tr>`,
			); err != nil {
				return err
			}
		}
		return write(w, `</tbody></table>`)
	})
}

// ModelView shows one resolved model: its JSON and what stayed detached.
func ModelView(handle, body string, defs []domain.DefinitionRecord) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := write(w, `<div id="model"><h2>`, esc(handle), `</h2><pre>`, esc(body), `</pre><h3>Detached properties</h3><ul>`); err != nil {
			return err
		}
		for _, d := range defs {
			target := d.Role
			if d.Kind == "simple" {
				target = fmt.Sprintf("%s#%v", d.Entity, d.ID)
			}
			if err := write(w, `<li>`, esc(d.Owner), `.`, esc(d.Property), ` &rarr; `, esc(target), `</li>`); err != nil {
				return err
			}
		}
		return write(w, `</ul></div>`)
	})
}

func Flash(message, kind string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w, `<div id="flash" class="flash `, esc(strings.ToLower(kind)), `">`, esc(message), `</div>`)
	})
}
