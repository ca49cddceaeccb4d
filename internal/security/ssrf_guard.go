// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は拒否するネットワーク範囲。パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"127.0.0.0/8",    // ループバック
		"169.254.0.0/16", // リンクローカル（メタデータIPを含む）
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// blockedHostnames は拒否するホスト名。
var blockedHostnames = []string{
	"localhost",
}

// SSRFGuard は投稿URLの検証と安全なHTTPクライアントの生成を提供する。
// ニュース評価器のURL検証と、エンリッチメントのHTTP取得の両方で使用される。
// 状態を持たないため並行利用できる。
type SSRFGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() *SSRFGuard {
	return &SSRFGuard{}
}

// NewSafeClient はsafeurlで保護されたHTTPクライアントを生成する。
// DNS解決後のIPアドレスもDialerのControlフックで検証される。
// maxResponseSizeが正の場合、レスポンスボディはその長さで打ち切られる。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		client.Transport = &limitedTransport{base: client.Transport, maxBodySize: maxResponseSize}
	}
	return client
}

// limitedTransport はレスポンスボディの読み取り量を制限するRoundTripper。
type limitedTransport struct {
	base        http.RoundTripper
	maxBodySize int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = &limitedBody{Reader: io.LimitReader(resp.Body, t.maxBodySize), closer: resp.Body}
	return resp, nil
}

// limitedBody は打ち切ったReaderと元ボディのCloseを組み合わせる。
type limitedBody struct {
	io.Reader
	closer io.Closer
}

func (b *limitedBody) Close() error {
	return b.closer.Close()
}

// ParseURL はDNS解決を伴わない静的な検証を行う。
// スキームはhttp/httpsのみ、ホストは必須で、プライベートIP・localhostは拒否する。
func (g *SSRFGuard) ParseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return nil, fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return parsed, nil
	}

	if isBlockedHostname(host) {
		return nil, fmt.Errorf("blocked host: %s", host)
	}

	return parsed, nil
}

// ValidateURL はParseURLの検証結果のみを返す。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	_, err := g.ParseURL(rawURL)
	return err
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}
