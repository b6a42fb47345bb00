package modguard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-pkgz/fileutils"
)

// DefaultAllowedDomains is the built-in set of trusted domains. Links to these
// never count as suspicious. Substring match, not full URL parsing - cheap and
// conservative, matching the way moderators actually maintain such lists.
var DefaultAllowedDomains = []string{
	"github.com",
	"bitbucket.com",
	"stackoverflow.com",
	"pastebin.com",
	"mit.edu",
	"usc.edu",
}

// SuspiciousURL reports if the text contains a link to a non-trusted domain.
// True iff the text has a link marker and none of the allowed domains appears
// as a substring.
func SuspiciousURL(text string, allowed []string) bool {
	if !strings.Contains(text, "http") {
		return false
	}
	for _, domain := range allowed {
		if strings.Contains(text, domain) {
			return false
		}
	}
	return true
}

// AllowList is a reloadable set of trusted domains, optionally backed by a
// file with one domain per line. Thread-safe.
type AllowList struct {
	domains []string
	file    string
	lock    sync.RWMutex
}

// NewAllowList makes an allow-list with the given domains, or the default set
// if none provided.
func NewAllowList(domains ...string) *AllowList {
	if len(domains) == 0 {
		domains = DefaultAllowedDomains
	}
	return &AllowList{domains: domains}
}

// NewAllowListFromFile loads the allow-list from a file, one domain per line.
// Empty lines and lines starting with # are skipped.
func NewAllowListFromFile(file string) (*AllowList, error) {
	res := &AllowList{file: file}
	if err := res.reload(); err != nil {
		return nil, err
	}
	return res, nil
}

// Domains returns a copy of the current domain set.
func (a *AllowList) Domains() []string {
	a.lock.RLock()
	defer a.lock.RUnlock()
	res := make([]string, len(a.domains))
	copy(res, a.domains)
	return res
}

// Add appends a domain to the allow-list and, if file-backed, persists it.
// The file is backed up before rewrite.
func (a *AllowList) Add(domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return fmt.Errorf("empty domain")
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	for _, d := range a.domains {
		if d == domain {
			return nil // already in the list
		}
	}
	a.domains = append(a.domains, domain)

	if a.file == "" {
		return nil
	}
	if err := fileutils.CopyFile(a.file, a.file+".bak"); err != nil {
		log.Printf("[WARN] can't backup allow-list %s: %v", a.file, err)
	}
	fh, err := os.OpenFile(a.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // operator-owned config file
	if err != nil {
		return fmt.Errorf("can't open allow-list file %s: %w", a.file, err)
	}
	defer fh.Close()
	if _, err := fh.WriteString(domain + "\n"); err != nil {
		return fmt.Errorf("can't append to allow-list file %s: %w", a.file, err)
	}
	return nil
}

// Watch monitors the backing file and reloads the list on change. Blocks until
// the context is canceled. Delay debounces bursts of file events.
func (a *AllowList) Watch(ctx context.Context, delay time.Duration) error {
	if a.file == "" {
		return fmt.Errorf("allow-list is not file-backed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(a.file); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.file, err)
	}

	reloadTimer := time.NewTimer(delay)
	reloadPending := false

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] stopping allow-list watcher: %v", ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.Printf("[DEBUG] allow-list file %q updated, op: %v", event.Name, event.Op)
			if !reloadPending {
				reloadPending = true
				reloadTimer.Reset(delay)
			}
		case <-reloadTimer.C:
			if reloadPending {
				reloadPending = false
				if err := a.reload(); err != nil {
					log.Printf("[WARN] failed to reload allow-list: %v", err)
				}
			}
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] allow-list watcher error: %v", e)
		}
	}
}

func (a *AllowList) reload() error {
	fh, err := os.Open(a.file)
	if err != nil {
		return fmt.Errorf("failed to open allow-list file %s: %w", a.file, err)
	}
	defer fh.Close()

	domains, err := readDomains(fh)
	if err != nil {
		return fmt.Errorf("failed to read allow-list file %s: %w", a.file, err)
	}

	a.lock.Lock()
	a.domains = domains
	a.lock.Unlock()
	log.Printf("[INFO] loaded %d trusted domains from %s", len(domains), a.file)
	return nil
}

func readDomains(r io.Reader) ([]string, error) {
	var res []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res = append(res, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
