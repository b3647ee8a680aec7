package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/devgateway/dozer-model/internal/adapters/db/sqldb"
	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// printRoot indents an already encoded object graph.
func printRoot(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printDefinitions(items []domain.DefinitionRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		id := "-"
		if item.ID != nil {
			id = fmt.Sprint(item.ID)
		}
		rows = append(rows, []string{
			item.Kind,
			item.Owner,
			item.Property,
			orDash(item.Entity),
			id,
			orDash(item.Role),
			orDash(item.Collection),
		})
	}
	printTable([]string{"KIND", "OWNER", "PROPERTY", "ENTITY", "ID", "ROLE", "COLLECTION"}, rows)
}

func printModels(items []application.StoredModel) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Handle,
			item.Entity,
			strconv.Itoa(item.Pending),
			formatTime(item.LastUsed),
		})
	}
	printTable([]string{"HANDLE", "ENTITY", "PENDING", "LAST_USED"}, rows)
}

func printSeed(item sqldb.SeedResult) {
	printKV([][2]string{
		{"customer_id", strconv.FormatUint(uint64(item.CustomerID), 10)},
		{"order_id", strconv.FormatUint(uint64(item.OrderID), 10)},
		{"invoice_id", strconv.FormatUint(uint64(item.InvoiceID), 10)},
		{"created", strconv.FormatBool(item.Created)},
	})
}
