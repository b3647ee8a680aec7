package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/devgateway/dozer-model/internal/domain"
)

type resolveResult struct {
	Handle      string                    `json:"handle"`
	Root        json.RawMessage           `json:"root"`
	Definitions []domain.DefinitionRecord `json:"definitions"`
}

func doModelOpen(ctx context.Context, cfg cliConfig, entity string, id uint, out any) error {
	params := map[string]any{"entity": entity, "id": id}
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "model.open", params, out)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodPost, "/models", params, out)
}

func doModelResolve(ctx context.Context, cfg cliConfig, handle string, initialize bool, out any) error {
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "model.resolve", map[string]any{"handle": handle, "initialize": initialize}, out)
	}
	path := "/models/" + url.PathEscape(handle)
	if initialize {
		path += "?initialize=" + strconv.FormatBool(initialize)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodGet, path, nil, out)
}

func doModelDefinitions(ctx context.Context, cfg cliConfig, handle string, out any) error {
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "model.definitions", map[string]any{"handle": handle}, out)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/models/"+url.PathEscape(handle)+"/definitions", nil, out)
}

func doModelList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "model.list", map[string]any{}, out)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/models/list", nil, out)
}

func doModelClose(ctx context.Context, cfg cliConfig, handle string) error {
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "model.close", map[string]any{"handle": handle}, nil)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodDelete, "/models/"+url.PathEscape(handle), nil, nil)
}
