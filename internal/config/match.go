package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseSize parses sizes like "512", "64KB" or "1MB" into bytes.
func ParseSize(s string) (int64, error) {
	str := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(str, "GB"):
		mult, str = 1<<30, strings.TrimSuffix(str, "GB")
	case strings.HasSuffix(str, "MB"):
		mult, str = 1<<20, strings.TrimSuffix(str, "MB")
	case strings.HasSuffix(str, "KB"):
		mult, str = 1<<10, strings.TrimSuffix(str, "KB")
	case strings.HasSuffix(str, "B"):
		str = strings.TrimSuffix(str, "B")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return n * mult, nil
}

// MatchPattern reports whether a slash-separated relative path matches a
// glob pattern. "**/" matches any number of leading directories and "/**"
// any suffix.
func MatchPattern(pattern, path string) bool {
	path = filepath.ToSlash(path)

	if strings.HasPrefix(pattern, "**/") {
		rest := strings.TrimPrefix(pattern, "**/")
		if strings.HasSuffix(rest, "/**") {
			dir := strings.TrimSuffix(rest, "/**")
			parts := strings.Split(path, "/")
			for _, part := range parts[:len(parts)-1] {
				if ok, _ := filepath.Match(dir, part); ok {
					return true
				}
			}
			return false
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			if ok, _ := filepath.Match(rest, strings.Join(parts[i:], "/")); ok {
				return true
			}
		}
		return false
	}

	ok, _ := filepath.Match(pattern, path)
	return ok
}

// ShouldInclude reports whether path passes the include and exclude lists.
func (c *WatchConfig) ShouldInclude(path string) bool {
	for _, p := range c.Exclude {
		if MatchPattern(p, path) {
			return false
		}
	}
	for _, p := range c.Include {
		if MatchPattern(p, path) {
			return true
		}
	}
	return false
}

func globTail(p string) string {
	p = strings.TrimPrefix(p, "**/")
	return strings.TrimSuffix(p, "/**")
}

// ExcludesDir reports whether a relative directory path is excluded.
func (c *WatchConfig) ExcludesDir(rel string) bool {
	inside := filepath.ToSlash(rel) + "/_"
	for _, p := range c.Exclude {
		if MatchPattern(p, inside) {
			return true
		}
	}
	return false
}
