// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"fmt"
	"html"
	"net/http"
	"reflect"
	"strings"
)

// --- HTML templates ---

const pageStyle = `<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 900px;
         margin: 0 auto; padding: 40px 20px 0; color: #2c2c1e; background: #faf8f0; }
  h1 { color: #2d5016; margin-bottom: 4px; font-weight: 700; }
  .meta { color: #6b6b5a; font-size: 0.9em; }
  code { font-family: monospace; background: #f0ece0; padding: 2px 6px;
          border-radius: 3px; font-size: 0.85em; }
  .card { border: 1px solid #f0ece0; border-radius: 8px; padding: 20px;
           margin-bottom: 16px; background: #fff; }
  .method-name { font-family: monospace; font-size: 1.1em; font-weight: 600; color: #2d5016; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 4px; margin-left: 8px;
            font-size: 0.75em; font-weight: 600; text-transform: uppercase;
            background: #e8f5e0; color: #2d5016; }
  .badge-oneway { background: #e0ecf5; color: #1a4a6b; }
  table { width: 100%%; border-collapse: collapse; font-size: 0.9em; margin-top: 8px; }
  th { text-align: left; padding: 8px 10px; background: #f0ece0; border-bottom: 2px solid #e0dcd0; }
  td { padding: 8px 10px; border-bottom: 1px solid #f0ece0; }
  .no-params { color: #6b6b5a; font-style: italic; font-size: 0.9em; }
</style>`

const notFoundHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>404 &mdash; thttp</title>
` + pageStyle + `
</head>
<body>
<h1>404 &mdash; Not Found</h1>
<p>No Thrift service is mounted at <code>%s</code>.</p>
%s
</body>
</html>`

const endpointHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s &mdash; thttp</title>
` + pageStyle + `
</head>
<body>
<h1>%s</h1>
<p class="meta">Thrift over HTTP at <code>%s</code> &middot; server <code>%s</code></p>
<p>POST Thrift messages to this path. The <code>Content-Type</code> header selects the format.</p>
<h2>Formats</h2>
<table><tr><th>Format</th><th>Media types</th><th></th></tr>
%s</table>
<h2>Methods</h2>
%s
</body>
</html>`

// --- Page builders ---

func buildNotFoundHTML(path string, endpoints []*endpoint) []byte {
	var list strings.Builder
	if len(endpoints) > 0 {
		list.WriteString("<p>Mounted services:</p>\n<ul>\n")
		for _, ep := range endpoints {
			fmt.Fprintf(&list, `<li><a href="%s"><code>%s</code></a></li>`+"\n",
				html.EscapeString(ep.path), html.EscapeString(ep.path))
		}
		list.WriteString("</ul>")
	}
	return []byte(fmt.Sprintf(notFoundHTMLTemplate, html.EscapeString(path), list.String()))
}

func buildEndpointHTML(ep *endpoint) []byte {
	title := ep.service.serviceName
	if title == "" {
		title = ep.path
	}

	var formats strings.Builder
	for _, f := range ep.policy.allowed {
		mts := make([]string, len(f.mediaTypes))
		for i, mt := range f.mediaTypes {
			mts[i] = "<code>" + html.EscapeString(mt.String()) + "</code>"
		}
		var badge string
		if f == ep.policy.defaultFormat {
			badge = `<span class="badge">default</span>`
		}
		fmt.Fprintf(&formats, "<tr><td><code>%s</code></td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(f.id), strings.Join(mts, "<br>"), badge)
	}

	var cards strings.Builder
	for _, name := range ep.service.Methods() {
		buildMethodCard(&cards, ep.service.methods[name])
	}

	return []byte(fmt.Sprintf(endpointHTMLTemplate,
		html.EscapeString(title), // <title>
		html.EscapeString(title), // <h1>
		html.EscapeString(ep.path),
		html.EscapeString(ep.service.serverID),
		formats.String(),
		cards.String(),
	))
}

func buildMethodCard(w *strings.Builder, info *methodInfo) {
	w.WriteString(`<div class="card">`)
	fmt.Fprintf(w, `<span class="method-name">%s</span>`, html.EscapeString(info.Name))
	if info.Oneway {
		w.WriteString(`<span class="badge badge-oneway">oneway</span>`)
	}

	st, err := inspectStruct(info.ParamsType)
	if err == nil && len(st.Fields) > 0 {
		w.WriteString(`<table><tr><th>Id</th><th>Name</th><th>Type</th></tr>`)
		for _, f := range st.Fields {
			req := ""
			if f.Optional {
				req = "optional "
			}
			fmt.Fprintf(w, `<tr><td>%d</td><td><code>%s</code></td><td><code>%s%s</code></td></tr>`,
				f.ID, html.EscapeString(f.Name), req, html.EscapeString(thriftTypeName(f.Type)))
		}
		w.WriteString(`</table>`)
	} else {
		w.WriteString(`<p class="no-params">No arguments</p>`)
	}

	result := "void"
	if info.ResultType != nil {
		result = thriftTypeName(info.ResultType)
	}
	fmt.Fprintf(w, `<p class="meta">Returns <code>%s</code></p>`, html.EscapeString(result))
	w.WriteString("</div>\n")
}

// thriftTypeName renders a Go type in Thrift IDL notation.
func thriftTypeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int8:
		return "byte"
	case reflect.Int16:
		return "i16"
	case reflect.Int32:
		return "i32"
	case reflect.Int, reflect.Int64:
		return "i64"
	case reflect.Float32, reflect.Float64:
		return "double"
	case reflect.String:
		return "string"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "binary"
		}
		return "list<" + thriftTypeName(t.Elem()) + ">"
	case reflect.Map:
		return "map<" + thriftTypeName(t.Key()) + "," + thriftTypeName(t.Elem()) + ">"
	case reflect.Struct:
		return t.Name()
	default:
		return t.String()
	}
}

// --- HTTP handlers ---

func (h *HttpServer) handleLanding(w http.ResponseWriter, _ *http.Request, ep *endpoint) {
	w.Header().Set(HeaderContentType, "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buildEndpointHTML(ep))
}

func (h *HttpServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(HeaderContentType, "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(buildNotFoundHTML(r.URL.Path, h.endpoints))
}
