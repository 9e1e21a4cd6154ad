package ota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

type release struct {
	TagName string  `json:"tag_name"`
	Body    string  `json:"body"`
	Draft   bool    `json:"draft"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	Digest             string `json:"digest"`
}

// checkError carries the failure reason out of the check steps.
type checkError struct {
	reason Reason
	msg    string
}

func (m *Manager) runCheck() {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.checking = false
		m.mu.Unlock()
	}()

	if m.cfg.Clock != nil {
		if err := m.cfg.Clock.Sync(m.base); err != nil {
			m.setResultError("NTP time sync failed.")
			m.fail(ReasonTimeSync, "NTP time sync failed. Cannot check for updates.")
			return
		}
	}
	m.setStatus(Status{State: StateChecking, Message: "Checking for updates..."})

	rel, ce := m.fetchRelease()
	if ce != nil {
		m.setResultError(ce.msg)
		m.fail(ce.reason, ce.msg)
		return
	}

	res := Result{
		CurrentVersion:   m.cfg.CurrentVersion,
		AvailableVersion: rel.TagName,
		Notes:            rel.Body,
	}
	if !isNewer(rel.TagName, m.cfg.CurrentVersion) {
		m.mu.Lock()
		m.result = res
		st := m.setStatusLocked(Status{State: StateIdle, Message: "Firmware is up to date."})
		m.mu.Unlock()
		m.emit(st)
		m.log.Info().Str("current", m.cfg.CurrentVersion).Str("latest", rel.TagName).Msg("firmware is up to date")
		return
	}

	a, ok := findAsset(rel.Assets, m.cfg.AssetName)
	if !ok {
		res.Error = "Firmware asset not found."
		m.mu.Lock()
		m.result = res
		m.mu.Unlock()
		m.fail(ReasonNoAsset, fmt.Sprintf("Firmware asset %s not found in release %s.", m.cfg.AssetName, rel.TagName))
		return
	}
	res.Available = true
	res.DownloadURL = a.BrowserDownloadURL
	res.AssetSize = a.Size
	res.Digest = a.Digest

	m.mu.Lock()
	m.result = res
	st := m.setStatusLocked(Status{State: StateChecking, Progress: 100, Message: "Update available: " + rel.TagName})
	m.mu.Unlock()
	m.emit(st)
	m.log.Info().Str("current", m.cfg.CurrentVersion).Str("available", rel.TagName).Msg("update available")
}

func (m *Manager) setResultError(msg string) {
	m.mu.Lock()
	m.result = Result{CurrentVersion: m.cfg.CurrentVersion, Error: msg}
	m.mu.Unlock()
}

// fetchRelease performs the single metadata request.
func (m *Manager) fetchRelease() (release, *checkError) {
	if m.cfg.Transport == nil || m.cfg.ReleasesURL == "" {
		return release{}, &checkError{ReasonTransport, "Update source not configured."}
	}
	ctx, cancel := context.WithTimeout(m.base, m.cfg.RequestTimeout)
	defer cancel()

	resp, err := m.cfg.Transport.Get(ctx, m.cfg.ReleasesURL)
	if err != nil {
		return release{}, &checkError{ReasonTransport, "HTTP connection failed: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return release{}, &checkError{ReasonTransport, fmt.Sprintf("HTTP error: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes+1))
	if err != nil {
		return release{}, &checkError{ReasonTransport, "Reading release metadata failed: " + err.Error()}
	}
	if len(body) > maxMetadataBytes {
		return release{}, &checkError{ReasonMetadata, fmt.Sprintf("Release metadata exceeds %d KiB.", maxMetadataBytes>>10)}
	}
	return parseRelease(body)
}

// parseRelease accepts either a releases list (newest first) or a single
// release object. Drafts are skipped.
func parseRelease(body []byte) (release, *checkError) {
	trimmed := strings.TrimSpace(string(body))
	var rels []release
	if strings.HasPrefix(trimmed, "{") {
		var r release
		if err := json.Unmarshal(body, &r); err != nil {
			return release{}, &checkError{ReasonMetadata, "JSON parsing failed: " + err.Error()}
		}
		rels = []release{r}
	} else if err := json.Unmarshal(body, &rels); err != nil {
		return release{}, &checkError{ReasonMetadata, "JSON parsing failed: " + err.Error()}
	}
	for _, r := range rels {
		if r.Draft {
			continue
		}
		if r.TagName == "" {
			return release{}, &checkError{ReasonMetadata, "Tag name not found in release info."}
		}
		return r, nil
	}
	return release{}, &checkError{ReasonMetadata, "No release information found in API response."}
}

func findAsset(assets []asset, name string) (asset, bool) {
	for _, a := range assets {
		if a.Name == name && a.BrowserDownloadURL != "" {
			return a, true
		}
	}
	return asset{}, false
}

// isNewer compares release tags as semantic versions, with or without a
// leading "v". Tags that are not valid semver fall back to a plain string
// comparison.
func isNewer(available, current string) bool {
	a, c := canonical(available), canonical(current)
	if a != "" && c != "" {
		return semver.Compare(a, c) > 0
	}
	return strings.TrimPrefix(available, "v") > strings.TrimPrefix(current, "v")
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
