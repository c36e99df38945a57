package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// BuildGramImageURL 返回 gram 图片的访问地址
func BuildGramImageURL(baseURL string, gramID uint) string {
	return fmt.Sprintf("%s/grams/%d/image", strings.TrimRight(baseURL, "/"), gramID)
}

// ExtractCookieDomain 从配置的域名中提取 cookie 可用的 host
func ExtractCookieDomain(domain string) string {
	if domain == "" {
		return ""
	}

	if !strings.Contains(domain, "://") {
		domain = "http://" + domain
	}

	u, err := url.Parse(domain)
	if err != nil {
		return ""
	}

	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}
