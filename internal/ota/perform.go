package ota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"deskhogd/internal/staging"
)

func (m *Manager) runPerform(t target) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.performing = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(m.base, m.cfg.DownloadTimeout)
	defer cancel()

	m.log.Info().Str("url", t.URL).Str("version", t.Version).Msg("starting firmware update")
	m.setStatus(Status{State: StateDownloading, Message: "Downloading firmware..."})

	if m.cfg.Transport == nil || m.cfg.Staging == nil {
		m.fail(ReasonTransport, "Update transport not configured.")
		return
	}
	resp, err := m.cfg.Transport.Get(ctx, t.URL)
	if err != nil {
		m.fail(ReasonTransport, "Download connection failed: "+err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		m.fail(ReasonDownload, fmt.Sprintf("HTTP error during download: %d", resp.StatusCode))
		return
	}
	total := resp.ContentLength
	if total <= 0 {
		m.fail(ReasonDownload, "Invalid content length from server.")
		return
	}
	if t.Size > 0 && total != t.Size {
		m.fail(ReasonDownload, fmt.Sprintf("Content length %d does not match release asset size %d.", total, t.Size))
		return
	}

	slot, err := m.cfg.Staging.Begin(total)
	if err != nil {
		if errors.Is(err, staging.ErrInsufficientSpace) {
			m.fail(ReasonNoSpace, "Not enough space for update.")
		} else {
			m.fail(ReasonWrite, "Could not begin update: "+err.Error())
		}
		return
	}
	committed := false
	defer func() {
		if !committed {
			if err := slot.Abort(); err != nil {
				m.log.Error().Err(err).Msg("abort staging")
			}
		}
	}()

	m.setStatus(Status{State: StateWriting, Message: "Writing firmware..."})
	sum, reason, msg := m.stream(ctx, resp.Body, slot, total)
	if reason != ReasonNone {
		m.fail(reason, msg)
		return
	}

	digest := "sha256:" + sum
	if want := strings.ToLower(t.Digest); want != "" && want != digest {
		m.fail(ReasonVerify, "Firmware checksum mismatch.")
		return
	}
	if err := slot.Commit(staging.Manifest{Version: t.Version, Digest: digest, Size: total}); err != nil {
		m.fail(ReasonCommit, "Finalizing update failed: "+err.Error())
		return
	}
	committed = true

	m.setStatus(Status{State: StateSuccess, Progress: 100, Message: "Update successful! Rebooting..."})
	m.log.Info().Str("version", t.Version).Int64("bytes", total).Str("digest", digest).Msg("firmware staged, restarting")
	m.scheduleRestart()
}

// stream copies exactly total bytes from body into slot in fixed chunks and
// returns the hex sha256 of what was written. Progress updates are limited to
// one per second plus the final 100%.
func (m *Manager) stream(ctx context.Context, body io.Reader, slot staging.Slot, total int64) (string, Reason, string) {
	h := sha256.New()
	buf := make([]byte, m.cfg.ChunkSize)
	throttle := rate.Sometimes{Interval: time.Second}
	var written int64

	for written < total {
		if ctx.Err() != nil {
			return "", ReasonDownload, fmt.Sprintf("Download timed out after %d of %d bytes.", written, total)
		}
		want := int64(len(buf))
		if rem := total - written; rem < want {
			want = rem
		}
		n, rerr := body.Read(buf[:want])
		if n > 0 {
			wn, werr := slot.Write(buf[:n])
			if werr != nil || wn != n {
				if werr == nil {
					werr = io.ErrShortWrite
				}
				return "", ReasonWrite, "Firmware write failed: " + werr.Error()
			}
			h.Write(buf[:n])
			written += int64(n)
			bytesWritten.Add(float64(n))
			pct := int(written * 100 / total)
			if pct == 100 {
				m.setProgress(100)
			} else {
				throttle.Do(func() { m.setProgress(pct) })
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", ReasonDownload, fmt.Sprintf("Download interrupted after %d of %d bytes: %v", written, total, rerr)
		}
	}
	if written != total {
		return "", ReasonDownload, fmt.Sprintf("Download incomplete: %d of %d bytes.", written, total)
	}
	return hex.EncodeToString(h.Sum(nil)), ReasonNone, ""
}

func (m *Manager) scheduleRestart() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-time.After(m.cfg.RestartDelay):
			m.cfg.Restart()
		case <-m.base.Done():
		}
	}()
}
