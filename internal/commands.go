package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/vizbase/internal/capture"
	"github.com/starford/vizbase/internal/mcpserver"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/verify"
)

// ErrMismatch is returned by RunVerify when the capture does not match its baseline.
var ErrMismatch = errors.New("image does not match baseline")

// VerifyRequest describes a one-shot verification from the command line.
// Exactly one of ImagePath and PageURL must be set.
type VerifyRequest struct {
	Key       models.ArtifactKey
	ImagePath string
	PageURL   string
	// Selector locates the region on PageURL.
	Selector  string
	Threshold *float64
}

func (r VerifyRequest) validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	switch {
	case r.ImagePath == "" && r.PageURL == "":
		return errors.New("either an image file or a page URL is required")
	case r.ImagePath != "" && r.PageURL != "":
		return errors.New("image file and page URL are mutually exclusive")
	case r.PageURL != "" && r.Selector == "":
		return errors.New("a selector is required when capturing a page")
	}
	return nil
}

// RunVerify verifies one image and returns ErrMismatch when it fails.
func RunVerify(ctx context.Context, req VerifyRequest, opts ...Option) (*models.Verification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	c, err := setup(opts, nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var src verify.CaptureFunc
	if req.ImagePath != "" {
		src = capture.File(req.ImagePath)
	} else {
		bc := c.cfg.Capture.Browser
		browser, err := capture.Launch(capture.BrowserOptions{
			Headless:        bc.Headless,
			Timeout:         bc.Timeout,
			WrapperSelector: bc.WrapperSelector,
			ViewportWidth:   bc.ViewportWidth,
			ViewportHeight:  bc.ViewportHeight,
		})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := browser.Close(); err != nil {
				c.logger.Warn("close browser failed", slog.String("error", err.Error()))
			}
		}()
		src = browser.Region(req.PageURL, req.Selector)
	}

	var vopts []verify.Option
	if req.Threshold != nil {
		vopts = append(vopts, verify.WithThreshold(*req.Threshold))
	}

	v, err := c.svc.Verify(ctx, req.Key, src, vopts...)
	if err != nil {
		return v, err
	}
	if !v.Matched {
		return v, fmt.Errorf("%w: %s (%.4f differing)", ErrMismatch, req.Key, v.Result.DifferingPixelRatio)
	}
	return v, nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	c, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	var urlOpts []capture.URLOption
	if c.cfg.Capture.AllowPrivateHosts {
		urlOpts = append(urlOpts, capture.AllowPrivateHosts())
	}
	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, urlOpts...).ServeStdio()
}
