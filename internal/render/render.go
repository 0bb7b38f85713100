// Package render emits the embeddable markup of a mind-map view: a sized
// container, the MindElixir asset and the script that boots the map and
// forwards node edits to the view's RPC endpoints.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"mindmap-backend/internal/mindmap"
	"mindmap-backend/internal/view"
)

//go:embed templates/mindmap.html
var templates embed.FS

var pageTmpl = template.Must(template.ParseFS(templates, "templates/mindmap.html"))

// AssetPath is the URL prefix the MindElixir bundle is served under.
const AssetPath = "/plugins/public/mind-map@"

// baseOptions are the MindElixir options every view starts from.
var baseOptions = map[string]any{
	"draggable":             true,
	"contextMenu":           true,
	"toolBar":               true,
	"nodeMenu":              true,
	"keypress":              true,
	"locale":                "en",
	"overflowHidden":        false,
	"mainLinkStyle":         2,
	"mainNodeVerticalGap":   15,
	"mainNodeHorizontalGap": 15,
	"allowUndo":             false,
}

// Page is everything one render needs.
type Page struct {
	View        *view.Configuration
	NodeData    *mindmap.Node
	LabelStyles map[string]string
	Editable    bool
	RootValue   string
}

type pageData struct {
	ID          string
	Height      string
	Script      string
	Endpoint    string
	RootValue   string
	Direction   int
	Options     map[string]any
	Data        map[string]any
	LabelStyles map[string]string
}

// Emitter renders view pages.
type Emitter struct {
	assetVersion string
	newID        func() string
}

// NewEmitter creates an emitter loading the MindElixir bundle of the given
// asset version.
func NewEmitter(assetVersion string) *Emitter {
	return &Emitter{
		assetVersion: assetVersion,
		newID: func() string {
			return "mindmap-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		},
	}
}

// ScriptURL is the URL of the MindElixir bundle.
func (e *Emitter) ScriptURL() string {
	return AssetPath + e.assetVersion + "/MindElixir.js"
}

// Options returns the MindElixir options for a page.
func Options(p Page) map[string]any {
	opts := make(map[string]any, len(baseOptions)+2)
	for k, v := range baseOptions {
		opts[k] = v
	}
	opts["mainLinkStyle"] = p.View.LinkStyleValue()
	opts["editable"] = p.Editable
	return opts
}

// Render writes the markup of p to w.
func (e *Emitter) Render(w io.Writer, p Page) error {
	if p.View == nil || p.NodeData == nil {
		return fmt.Errorf("render: page needs a view and node data")
	}
	styles := p.LabelStyles
	if styles == nil {
		styles = map[string]string{}
	}

	data := pageData{
		ID:          e.newID(),
		Height:      p.View.HeightCSS(),
		Script:      e.ScriptURL(),
		Endpoint:    "/view/" + url.PathEscape(p.View.Name),
		RootValue:   p.RootValue,
		Direction:   int(p.View.DirectionValue()),
		Options:     Options(p),
		Data:        map[string]any{"nodeData": p.NodeData, "linkData": map[string]any{}},
		LabelStyles: styles,
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render view %s: %w", p.View.Name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
