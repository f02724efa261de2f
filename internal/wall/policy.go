package wall

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/longregen/cogito/internal/domain/models"
)

// policyViolation is one rule failure from the policy tier.
type policyViolation struct {
	RuleID string
	Detail string
}

func (v *policyViolation) String() string {
	return v.RuleID + ": " + v.Detail
}

// argument keys the policy tier treats as filesystem paths and URLs.
var (
	pathArgKeys = []string{"path", "file", "filename", "dir"}
	urlArgKeys  = []string{"url", "uri", "link"}
)

// checkPolicy enforces the non-rate-limit policy rules: path confinement,
// denied extensions, content size, URL allowlist, and side-effect gating.
func (w *Wall) checkPolicy(spec *models.ToolSpec, args map[string]any) *policyViolation {
	for _, key := range pathArgKeys {
		raw, ok := args[key].(string)
		if !ok || raw == "" {
			continue
		}
		if v := w.checkPath(key, raw); v != nil {
			return v
		}
	}

	for _, key := range urlArgKeys {
		raw, ok := args[key].(string)
		if !ok || raw == "" {
			continue
		}
		if v := w.checkURL(key, raw); v != nil {
			return v
		}
	}

	if content, ok := args["content"].(string); ok && w.cfg.FSMaxBytes > 0 {
		if int64(len(content)) > w.cfg.FSMaxBytes {
			return &policyViolation{
				RuleID: "fs_content_too_large",
				Detail: fmt.Sprintf("content is %d bytes, limit %d", len(content), w.cfg.FSMaxBytes),
			}
		}
	}

	switch spec.SideEffect {
	case models.SideEffectNetwork, models.SideEffectOSControl:
		w.policyMu.RLock()
		gated := w.effectPolicies[spec.Name]
		w.policyMu.RUnlock()
		if !gated {
			return &policyViolation{
				RuleID: "side_effect_ungated",
				Detail: fmt.Sprintf("tool %s has side effect %s but no policy entry", spec.Name, spec.SideEffect),
			}
		}
	}

	return nil
}

// checkPath confines a filesystem argument to the configured root and
// rejects denied extensions. Relative paths resolve against the root.
func (w *Wall) checkPath(key, raw string) *policyViolation {
	root := filepath.Clean(w.cfg.FSRoot)
	resolved := filepath.Clean(raw)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return &policyViolation{
			RuleID: "fs_outside_root",
			Detail: fmt.Sprintf("%s %q resolves outside %s", key, raw, root),
		}
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	for _, denied := range w.cfg.FSDeniedExts {
		if ext == strings.ToLower(denied) {
			return &policyViolation{
				RuleID: "fs_denied_extension",
				Detail: fmt.Sprintf("%s %q has denied extension %s", key, raw, ext),
			}
		}
	}
	return nil
}

// checkURL requires the host to match the domain allowlist, exactly or as a
// subdomain.
func (w *Wall) checkURL(key, raw string) *policyViolation {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &policyViolation{
			RuleID: "url_unparseable",
			Detail: fmt.Sprintf("%s %q is not an absolute URL", key, raw),
		}
	}
	host := strings.ToLower(u.Hostname())
	w.policyMu.RLock()
	allowlist := w.allowlistDomains
	w.policyMu.RUnlock()
	for _, domain := range allowlist {
		d := strings.ToLower(domain)
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return &policyViolation{
		RuleID: "domain_not_allowlisted",
		Detail: fmt.Sprintf("%s host %q is not on the allowlist", key, host),
	}
}
