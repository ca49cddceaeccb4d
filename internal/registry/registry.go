// Package registry は情報源・チャンネルの信頼性レジストリを提供する。
// 生成後は読み取り専用で、並行する評価器から安全に共有できる。
package registry

import (
	"net/url"
	"regexp"
	"strings"
)

// Source はニュース情報源の評価。
type Source struct {
	Name     string
	Credible bool
	Bias     string
	Rating   float64 // [0,10]
	Hosts    []string
	Aliases  []string
}

// Channel は動画チャンネルの評価。
type Channel struct {
	Name        string
	Handle      string
	Verified    bool
	Subscribers string
}

// unknownSourceName はホストが未登録の場合に割り当てる情報源名。
const unknownSourceName = "Unknown Blog"

// Registry は情報源とチャンネルのレジストリ。
type Registry struct {
	sources  []Source
	byHost   map[string]int
	byName   map[string]int
	mentions []mention
	channels []Channel
	byHandle map[string]int
	unknown  Source
}

type mention struct {
	re    *regexp.Regexp
	index int
}

// DefaultSources は参照実装の情報源データ。
func DefaultSources() []Source {
	return []Source{
		{Name: "Reuters", Credible: true, Bias: "Center", Rating: 9.2,
			Hosts: []string{"reuters.com"}},
		{Name: "Associated Press", Credible: true, Bias: "Center", Rating: 9.1,
			Hosts: []string{"apnews.com", "ap.org"}, Aliases: []string{"AP News"}},
		{Name: "BBC News", Credible: true, Bias: "Center-Left", Rating: 8.8,
			Hosts: []string{"bbc.com", "bbc.co.uk"}, Aliases: []string{"BBC"}},
		{Name: "CNN", Credible: true, Bias: "Left-Center", Rating: 7.9,
			Hosts: []string{"cnn.com"}},
		{Name: unknownSourceName, Credible: false, Bias: "Unknown", Rating: 3.2},
		{Name: "Social Media Post", Credible: false, Bias: "Variable", Rating: 2.1,
			Hosts: []string{"facebook.com", "twitter.com", "x.com", "threads.net", "reddit.com"}},
	}
}

// DefaultChannels は参照実装のチャンネルデータ。
func DefaultChannels() []Channel {
	return []Channel{
		{Name: "ScienceDaily", Handle: "sciencedaily", Verified: true, Subscribers: "2.1M"},
		{Name: "NewsChannel", Handle: "newschannel", Verified: true, Subscribers: "5.8M"},
		{Name: "RandomUser123", Handle: "randomuser123", Verified: false, Subscribers: "1.2K"},
		{Name: "FactChecker", Handle: "factchecker", Verified: true, Subscribers: "890K"},
	}
}

// Default は参照データで構築したレジストリを返す。
func Default() *Registry {
	return New(DefaultSources(), DefaultChannels())
}

// New はレジストリを構築する。
// sourcesに"Unknown Blog"が含まれない場合は評価0の非信頼情報源を未登録用に使う。
func New(sources []Source, channels []Channel) *Registry {
	r := &Registry{
		sources:  append([]Source(nil), sources...),
		byHost:   make(map[string]int),
		byName:   make(map[string]int),
		channels: append([]Channel(nil), channels...),
		byHandle: make(map[string]int),
		unknown:  Source{Name: unknownSourceName, Bias: "Unknown"},
	}

	for i, s := range r.sources {
		r.byName[strings.ToLower(s.Name)] = i
		for _, h := range s.Hosts {
			r.byHost[strings.ToLower(h)] = i
		}
		if s.Name == unknownSourceName {
			r.unknown = s
			continue
		}
		// 名前・別名の言及は単語境界で照合する
		for _, term := range append([]string{s.Name}, s.Aliases...) {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
			r.mentions = append(r.mentions, mention{re: re, index: i})
		}
	}

	for i, c := range r.channels {
		r.byHandle[strings.ToLower(c.Handle)] = i
	}

	return r
}

// Unknown は未登録の情報源に割り当てる評価を返す。
func (r *Registry) Unknown() Source {
	return r.unknown
}

// SourceByName は名前（大文字小文字を区別しない）で情報源を検索する。
func (r *Registry) SourceByName(name string) (Source, bool) {
	i, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// SourceByHost はホスト名から情報源を検索する。
// サブドメイン（www.reuters.com など）は登録ドメインまで遡って照合する。
func (r *Registry) SourceByHost(host string) (Source, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if i, ok := r.byHost[host]; ok {
			return r.sources[i], true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return Source{}, false
}

// FindSourceInText はテキスト中で言及されている情報源を返す。
// 埋め込まれたURLのホストを優先し、次に最も早く出現する名前・別名を採用する。
func (r *Registry) FindSourceInText(text string) (Source, bool) {
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		u, err := url.Parse(strings.TrimRight(field, ".,;:!?)\"'"))
		if err != nil {
			continue
		}
		if s, ok := r.SourceByHost(u.Hostname()); ok {
			return s, true
		}
	}

	best, bestPos := -1, -1
	for _, m := range r.mentions {
		loc := m.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestPos < 0 || loc[0] < bestPos {
			best, bestPos = m.index, loc[0]
		}
	}
	if best < 0 {
		return Source{}, false
	}
	return r.sources[best], true
}

// ChannelByHandle はハンドル（@を除く）でチャンネルを検索する。
func (r *Registry) ChannelByHandle(handle string) (Channel, bool) {
	handle = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(handle)), "@")
	i, ok := r.byHandle[handle]
	if !ok {
		return Channel{}, false
	}
	return r.channels[i], true
}

// Channels は登録済みチャンネルのコピーを返す。
func (r *Registry) Channels() []Channel {
	return append([]Channel(nil), r.channels...)
}
