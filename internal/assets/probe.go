package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// probeBytes is enough to cover the TIFF header and GDAL's ghost area.
const probeBytes = 16 << 10

var (
	tiffMagic = [][]byte{
		{'I', 'I', 42, 0}, {'M', 'M', 0, 42}, // classic TIFF
		{'I', 'I', 43, 0}, {'M', 'M', 0, 43}, // BigTIFF
	}
	cogLayout = []byte("LAYOUT=COG")
)

// Prober inspects the head of a GeoTIFF for the cloud-optimized layout
// marker GDAL writes into its ghost metadata.
type Prober struct {
	client *http.Client
}

// NewProber creates a prober. A nil client gets a 10s timeout client.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Prober{client: client}
}

// IsCOG reports whether href starts with a TIFF header carrying the COG
// layout marker. Any fetch failure reports false.
func (p *Prober) IsCOG(ctx context.Context, href string) bool {
	head, err := p.head(ctx, href)
	if err != nil {
		return false
	}
	return looksLikeCOG(head)
}

func (p *Prober) head(ctx context.Context, href string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, probeBytes))
}

func looksLikeCOG(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	for _, magic := range tiffMagic {
		if bytes.Equal(head[:4], magic) {
			return bytes.Contains(head, cogLayout)
		}
	}
	return false
}
