package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/smarty-pants-inc/botpack/pkg/manifest"
)

// SchemaURI identifies the emitted target MCP document schema.
const SchemaURI = "https://smartykit.dev/schemas/mcp.json"

// Transport kinds derived from server definitions: {command, args} is
// stdio, {url} is http.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server is one aggregated MCP server, namespaced by its source.
type Server struct {
	Fqid      string
	Name      string
	Transport string
	Command   string
	Args      []string
	URL       string
	Env       map[string]string
}

// NeedsExec reports whether admitting this server requires the exec
// capability (stdio servers spawn processes).
func (s Server) NeedsExec() bool {
	return s.Transport == TransportStdio
}

// NeedsMcp reports whether admitting this server requires the mcp
// capability (non-stdio servers reach the network).
func (s Server) NeedsMcp() bool {
	return s.Transport != TransportStdio
}

// ParseServersFile reads a servers.toml and namespaces each server as
// "<namespace>/<id>". Servers are returned sorted by fqid.
func ParseServersFile(namespace, path string) ([]Server, error) {
	raw, err := manifest.LoadFile(path)
	if err != nil {
		return nil, err
	}

	version, ok := raw["version"].(int64)
	if !ok || version != 1 {
		return nil, fmt.Errorf("%s: unsupported version %v", path, raw["version"])
	}

	serversRaw, ok := raw["server"]
	if !ok {
		return nil, nil
	}
	list, ok := serversRaw.([]map[string]any)
	if !ok {
		// go-toml decodes [[server]] into []map[string]any inside a map[string]any
		// only when homogeneous; accept []any too.
		anyList, ok := serversRaw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: [[server]] must be an array of tables", path)
		}
		for _, item := range anyList {
			tbl, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: each [[server]] must be a table", path)
			}
			list = append(list, tbl)
		}
	}

	out := make([]Server, 0, len(list))
	for _, tbl := range list {
		srv, err := parseServer(namespace, path, tbl)
		if err != nil {
			return nil, err
		}
		out = append(out, srv)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Fqid < out[j].Fqid })
	return out, nil
}

func parseServer(namespace, path string, tbl map[string]any) (Server, error) {
	var srv Server

	id, _ := tbl["id"].(string)
	if id == "" {
		return srv, fmt.Errorf("%s: server.id is required", path)
	}
	srv.Fqid = namespace + "/" + id
	srv.Name, _ = tbl["name"].(string)

	if envRaw, ok := tbl["env"]; ok {
		envTbl, ok := envRaw.(map[string]any)
		if !ok {
			return srv, fmt.Errorf("%s: server.env for %s must be a string map", path, srv.Fqid)
		}
		env := make(map[string]string, len(envTbl))
		for k, v := range envTbl {
			s, ok := v.(string)
			if !ok {
				return srv, fmt.Errorf("%s: server.env for %s must be a string map", path, srv.Fqid)
			}
			env[k] = s
		}
		if len(env) > 0 {
			srv.Env = env
		}
	}

	if urlRaw, ok := tbl["url"]; ok {
		u, ok := urlRaw.(string)
		if !ok {
			return srv, fmt.Errorf("%s: server.url for %s must be a string", path, srv.Fqid)
		}
		srv.Transport = TransportHTTP
		srv.URL = u
		return srv, nil
	}

	cmd, ok := tbl["command"].(string)
	if !ok {
		return srv, fmt.Errorf("%s: server.command for %s must be a string", path, srv.Fqid)
	}
	srv.Transport = TransportStdio
	srv.Command = cmd

	if argsRaw, ok := tbl["args"]; ok {
		args, err := toStringSlice(argsRaw)
		if err != nil {
			return srv, fmt.Errorf("%s: server.args for %s must be a list of strings", path, srv.Fqid)
		}
		srv.Args = args
	} else {
		srv.Args = []string{}
	}
	return srv, nil
}

func toStringSlice(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("not a string: %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list")
}

// BuildDocument renders the canonical target MCP document for the given
// servers: sorted by fqid, sorted keys, trailing newline. A duplicate
// fqid is a hard error; well-formed inputs cannot produce one, so this
// guards against malformed inputs and aggregation bugs.
func BuildDocument(servers []Server) ([]byte, error) {
	sorted := append([]Server(nil), servers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Fqid < sorted[j].Fqid })

	seen := map[string]bool{}
	entries := make([]map[string]any, 0, len(sorted))
	for _, s := range sorted {
		if seen[s.Fqid] {
			return nil, fmt.Errorf("duplicate mcp server fqid: %s", s.Fqid)
		}
		seen[s.Fqid] = true
		entries = append(entries, serverToJSON(s))
	}

	doc := map[string]any{
		"$schema": SchemaURI,
		"servers": entries,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func serverToJSON(s Server) map[string]any {
	out := map[string]any{
		"name":      s.Fqid,
		"transport": s.Transport,
	}
	if s.Command != "" {
		out["command"] = s.Command
	}
	if s.Args != nil {
		out["args"] = s.Args
	}
	if s.URL != "" {
		out["url"] = s.URL
	}
	if s.Env != nil {
		out["env"] = s.Env
	}
	if s.Name != "" {
		out["notes"] = s.Name
	}
	return out
}
