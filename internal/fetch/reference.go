package fetch

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ReferenceFetcher turns a reference profile URL into plain text.
type ReferenceFetcher struct {
	opts    *Options
	browser BrowserFunc
	logger  *zap.Logger
}

// NewReferenceFetcher builds a fetcher. A nil browser disables the headless fallback.
func NewReferenceFetcher(opts *Options, browser BrowserFunc, logger *zap.Logger) *ReferenceFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceFetcher{opts: opts, browser: browser, logger: logger}
}

// Text fetches the page and extracts its main text. When the static HTML holds
// too little text and a browser is configured, the rendered page is used instead.
func (f *ReferenceFetcher) Text(ctx context.Context, urlStr string) (string, error) {
	result, err := URL(ctx, urlStr, f.opts)
	if err != nil {
		return "", err
	}

	text, err := ExtractMainText(result.HTML, ProfilePageSelectors())
	if err != nil {
		return "", &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
	}

	if f.browser != nil && ShouldUseBrowser(text) {
		f.logger.Info("static page too short, rendering in browser",
			zap.String("url", urlStr),
			zap.Int("static_chars", len(text)),
		)
		if !f.opts.AllowPrivateNetworks {
			if err := CheckHost(ctx, urlStr); err != nil {
				return "", err
			}
		}
		html, berr := f.browser(ctx, urlStr)
		if berr != nil {
			// keep the static text if there is any
			if strings.TrimSpace(text) != "" {
				f.logger.Warn("browser fallback failed", zap.String("url", urlStr), zap.Error(berr))
				return text, nil
			}
			return "", &Error{URL: urlStr, Message: "browser rendering failed", Cause: berr}
		}
		if rendered, rerr := ExtractMainText(html, ProfilePageSelectors()); rerr == nil && len(rendered) > len(text) {
			text = rendered
		}
	}

	if strings.TrimSpace(text) == "" {
		return "", &Error{URL: urlStr, Message: "page has no readable text"}
	}
	return text, nil
}
