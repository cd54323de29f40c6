package preview

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/styles"
	"github.com/yuanying/zinespread/internal/viewer"
)

//go:embed assets/bridge.js
var bridgeJS string

const toggleIcon = `<svg width="18" height="18" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M8 3H5a2 2 0 0 0-2 2v3m18 0V5a2 2 0 0 0-2-2h-3m0 18h3a2 2 0 0 0 2-2v-3M3 16v3a2 2 0 0 0 2 2h3"/></svg>`

// bridgeConfig is what the surface bridge needs to reach its host.
type bridgeConfig struct {
	Socket        string  `json:"socket"`
	SettleDelayMs int64   `json:"settleDelayMs"`
	Unit          string  `json:"unit"`
	Margin        float64 `json:"margin"`
}

// Render returns the surface markup of the session: the arranged document in
// its current state with the mode stylesheet, the fullscreen toggle, the
// shared runtime and the bridge to the host.
func (s *Session) Render(socketPath string) (string, error) {
	s.mu.Lock()
	src, err := document.Render(s.dom)
	mode, index := s.mode, s.anim.Current()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	// Work on a copy so surface chrome never enters the session arrangement.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to copy arrangement: %w", err)
	}

	document.InjectStyle(doc, styles.StyleID, s.styles.ForMode(mode, index)+styles.Toggle())
	document.AppendToBody(doc, fmt.Sprintf(`<button id="%s" class="%s" %s="toggle" title="Toggle fullscreen">%s</button>`,
		styles.ToggleID, styles.ToggleClass, document.SurfaceAttr, toggleIcon))

	cfg, err := json.Marshal(bridgeConfig{
		Socket:        socketPath,
		SettleDelayMs: s.cfg.SettleDelay.Milliseconds(),
		Unit:          s.engine.Unit(),
		Margin:        s.cfg.Margin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bridge config: %w", err)
	}
	document.AppendToBody(doc, fmt.Sprintf(`<script %s="config">window.ZineBridgeConfig = %s;</script>`, document.SurfaceAttr, cfg))
	document.AppendToBody(doc, fmt.Sprintf(`<script %s="runtime">%s</script>`, document.SurfaceAttr, viewer.Runtime()))
	document.AppendToBody(doc, fmt.Sprintf(`<script %s="bridge">%s</script>`, document.SurfaceAttr, bridgeJS))

	return document.Render(doc)
}
