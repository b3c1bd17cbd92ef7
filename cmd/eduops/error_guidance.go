package main

import (
	"context"
	"errors"
	"net"

	"eduops/internal/api"
	"eduops/internal/upload"
)

var codeHints = map[string]string{
	"file_too_large":     "hint: files are limited to 10 MB; compress or split the file.",
	"unsupported_type":   "hint: documents must be PDF, Word, Excel, CSV or plain text; images PNG, JPEG, GIF or WebP.",
	"size_mismatch":      "hint: the upload was incomplete; run the upload again from the start.",
	"not_found":          "hint: the item may have been archived or the id is wrong.",
	"conflict":           "hint: that attachment id is already in use; omit --id to get a fresh one.",
	"unauthorized":       "hint: set EDUOPS_API_TOKEN or pass --token (mint one with: eduops token issue).",
	"forbidden":          "hint: your token's role does not allow this; archive and admin commands need an admin token.",
	"resource_exhausted": "hint: another sweep is running; retry shortly.",
}

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if errors.Is(err, upload.ErrChunkTransferFailed) {
		lines = append(lines, "hint: a chunk failed to send; the upload was abandoned and will be cleaned up. Run it again.")
	}
	if errors.Is(err, upload.ErrFileTooLarge) {
		lines = append(lines, codeHints["file_too_large"])
	}
	if errors.Is(err, upload.ErrUnsupportedType) {
		lines = append(lines, codeHints["unsupported_type"])
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if hint, ok := codeHints[apiErr.Code]; ok {
			lines = append(lines, hint)
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify EDUOPS_API_URL points to an eduops server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase EDUOPS_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an eduops server is running at EDUOPS_API_URL.",
			"hint: start local server manually with: eduops srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
