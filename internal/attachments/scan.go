package attachments

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "portal-backend/internal/errors"
)

const (
	scannerLookupTimeout = 5 * time.Second
	scanTimeout          = 30 * time.Second
)

// ScanFile runs clamdscan against a staged upload when the scanner is
// installed. Fail-open: a missing scanner, scanner error or timeout all
// count as clean so uploads never block on AV availability. Only a
// positive "infected" verdict rejects.
func ScanFile(path string) error {
	lookupCtx, cancel := context.WithTimeout(context.Background(), scannerLookupTimeout)
	defer cancel()

	bin, err := exec.CommandContext(lookupCtx, "which", "clamdscan").Output()
	if err != nil || strings.TrimSpace(string(bin)) == "" {
		return nil
	}

	scanCtx, cancelScan := context.WithTimeout(context.Background(), scanTimeout)
	defer cancelScan()

	out, err := exec.CommandContext(scanCtx, "clamdscan", "--no-summary", path).CombinedOutput()
	if scanCtx.Err() != nil {
		logrus.WithField("path", path).Warn("virus scan timed out, treating as clean")
		return nil
	}
	if err != nil {
		// clamdscan exits 1 on infection, anything else is a scanner fault.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			threat := parseThreat(string(out))
			return apperrors.Validation(fmt.Sprintf("file rejected by virus scan: %s", threat))
		}
		logrus.WithError(err).Warn("virus scan failed, treating as clean")
		return nil
	}
	return nil
}

// parseThreat pulls the threat name out of a clamdscan line like
// "/tmp/x: Eicar-Test-Signature FOUND".
func parseThreat(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, "FOUND") {
			continue
		}
		if idx := strings.Index(line, ": "); idx >= 0 {
			return strings.TrimSuffix(line[idx+2:], " FOUND")
		}
	}
	return "unknown threat"
}
