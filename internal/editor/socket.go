package editor

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/session"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// inbound is a message from the page.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Name    string `json:"name,omitempty"`   // apply_template by catalog name
	Key     string `json:"key,omitempty"`    // accelerator, e.g. "ctrl+s"
	Theme   string `json:"theme,omitempty"`  // "light", "dark" or "toggle"
	System  string `json:"system,omitempty"` // reported system preference
	Confirm bool   `json:"confirm,omitempty"`
}

// outbound is a message to the page.
type outbound struct {
	Type    string         `json:"type"`
	State   *session.State `json:"state,omitempty"`
	Render  *render.Output `json:"render,omitempty"`
	Path    string         `json:"path,omitempty"`
	Action  string         `json:"action,omitempty"`
	Theme   theme.Theme    `json:"theme,omitempty"`
	Message string         `json:"message,omitempty"`
}

// client serializes writes to one connection.
type client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

func (c *client) send(msg outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (c *client) sendError(message string) {
	c.send(outbound{Type: "error", Message: message})
}

func (e *Editor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := e.logger.With(zap.String("conn", uuid.NewString()))
	c := &client{conn: conn, logger: logger}

	preview := render.NewPreview(e.engine, logger, e.opts.Metrics)
	preview.OnUpdate(func(out render.Output) {
		c.send(outbound{Type: "render", Render: &out})
	})

	sess := e.newSession(preview, logger)
	defer sess.Close()
	sess.OnState(func(st session.State) {
		c.send(outbound{Type: "state", State: &st})
	})
	sess.OnNavigate(func(path string) {
		c.send(outbound{Type: "navigate", Path: path})
	})

	c.send(outbound{Type: "theme", Theme: sess.Theme()})
	if e.themes != nil {
		unsubscribe := e.themes.Subscribe(func(t theme.Theme) {
			sess.SetTheme(t)
			c.send(outbound{Type: "theme", Theme: t})
		})
		defer unsubscribe()
	}

	req := session.LoadRequest{
		ID:       chi.URLParam(r, "id"),
		Template: rawQueryParam(r.URL.RawQuery, "template"),
	}
	if err := sess.Open(r.Context(), req); err != nil {
		logger.Warn("opening session", zap.Error(err))
		c.sendError("could not load diagram")
		return
	}
	logger.Debug("editor session opened", zap.String("id", req.ID))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			c.sendError("invalid message format")
			continue
		}
		e.dispatch(r.Context(), c, sess, in)
	}
}

func (e *Editor) dispatch(ctx context.Context, c *client, sess *session.Session, in inbound) {
	asked := false
	confirm := func() bool {
		asked = true
		return in.Confirm
	}
	declined := func(action string) {
		if asked && !in.Confirm {
			c.send(outbound{Type: "confirm_required", Action: action})
		}
	}

	switch in.Type {
	case "edit":
		sess.SetContent(in.Content)
	case "title":
		sess.SetTitle(in.Title)
	case "save":
		if err := sess.Save(ctx); err != nil {
			c.sendError("Failed to save diagram")
		}
	case "new":
		sess.New(confirm)
		declined("new")
	case "key":
		handled, err := sess.HandleKey(ctx, in.Key, confirm)
		switch {
		case !handled:
			c.sendError("unknown shortcut: " + in.Key)
		case err != nil:
			c.sendError("Failed to save diagram")
		}
		declined("new")
	case "layout":
		sess.CycleLayout()
	case "templates":
		sess.ToggleTemplates()
	case "help":
		sess.ToggleHelp()
	case "apply_template":
		source := in.Content
		if in.Name != "" {
			tpl, ok := templates.Find(in.Name)
			if !ok {
				c.sendError("unknown template: " + in.Name)
				return
			}
			source = tpl.Source
		}
		sess.ApplyTemplate(source)
	case "theme":
		e.applyTheme(ctx, c, sess, in)
	default:
		c.sendError("unknown message type: " + in.Type)
	}
}

func (e *Editor) applyTheme(ctx context.Context, c *client, sess *session.Session, in inbound) {
	if in.System != "" {
		if t, ok := theme.Parse(in.System); ok && e.themes != nil {
			e.themes.SystemChanged(t)
		}
	}
	if in.Theme == "" {
		return
	}

	var next theme.Theme
	if in.Theme == "toggle" {
		next = sess.Theme().Toggle()
	} else {
		t, ok := theme.Parse(in.Theme)
		if !ok {
			c.sendError("unknown theme: " + in.Theme)
			return
		}
		next = t
	}

	if e.themes == nil {
		sess.SetTheme(next)
		c.send(outbound{Type: "theme", Theme: next})
		return
	}
	if err := e.themes.Set(ctx, next); err != nil {
		c.sendError("could not save theme")
	}
}

// rawQueryParam returns the still-encoded value of name in a raw query.
func rawQueryParam(rawQuery, name string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		if v, ok := strings.CutPrefix(pair, name+"="); ok {
			return v
		}
	}
	return ""
}
