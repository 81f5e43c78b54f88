// Package integration exercises the ingest, retrieval, MCP and watch paths
// together against real temp directories.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/config"
)

func openApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = dir
	cfg.Paths.IndexDir = filepath.Join(dir, "index")
	cfg.Paths.UploadDir = filepath.Join(dir, "uploads")
	cfg.Chunking.ChunkSize = 200
	cfg.Chunking.ChunkOverlap = 20

	a, err := app.Open(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

const checkoutHTML = `<html><head><title>Checkout</title><style>.x{}</style></head>
<body><form id="checkout">
<input id="discount-code" name="discount"><button id="apply">Apply</button>
<select id="shipping"><option>Standard</option><option>Express</option></select>
<button id="pay-now">Pay Now</button></form></body></html>`

const productSpec = `# Product Specification

The discount code SAVE15 applies a 15% discount to the cart total.
Only one discount code may be used per order.

Express shipping costs $10. Standard shipping is free.
Payment requires name, email and address to be filled in.`
