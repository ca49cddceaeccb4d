package signals

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/registry"
	"github.com/hitoshi/truthlens/internal/security"
)

const eps = 1e-9

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEnv() Env {
	return Env{Registry: registry.Default(), URLs: security.NewSSRFGuard()}
}

func urlInput(raw string) Input {
	return Input{
		Item: &model.ContentItem{ID: "item-1", Kind: model.KindURL, Title: "URL: " + raw, URL: raw},
		Now:  testNow,
	}
}

func socialInput(raw, platform string) Input {
	return Input{
		Item: &model.ContentItem{ID: "item-1", Kind: model.KindSocial, URL: raw, Platform: platform},
		Now:  testNow,
	}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo-eps && v <= hi+eps
}

func TestNews_CredibleSource(t *testing.T) {
	env := testEnv()
	in := urlInput("https://www.reuters.com/world/government-announces-infrastructure-plan")

	for seed := uint64(0); seed < 50; seed++ {
		b, err := News(in, env, NewRand(seed, 0))
		if err != nil {
			t.Fatalf("seed %d: News() error = %v", seed, err)
		}
		if b.Primary == nil {
			t.Fatalf("seed %d: Primary is nil", seed)
		}
		if !inRange(b.Primary.TrustScore, 87, 97) {
			t.Errorf("seed %d: TrustScore = %v, want [87,97]", seed, b.Primary.TrustScore)
		}
		if !inRange(b.Primary.BaseConfidence, 75, 95) {
			t.Errorf("seed %d: BaseConfidence = %v, want [75,95]", seed, b.Primary.BaseConfidence)
		}
		if b.Article.Source != "Reuters" {
			t.Errorf("seed %d: Source = %q, want Reuters", seed, b.Article.Source)
		}
		if !slices.Contains(credibleAuthors, b.Article.Author) {
			t.Errorf("seed %d: Author = %q, want one of %v", seed, b.Article.Author, credibleAuthors)
		}
		if b.Article.PublishDate.After(testNow) || b.Article.PublishDate.Before(testNow.Add(-7*24*time.Hour)) {
			t.Errorf("seed %d: PublishDate = %v, want within the last 7 days", seed, b.Article.PublishDate)
		}
		if b.Article.Sensational {
			t.Errorf("seed %d: Sensational = true, want false", seed)
		}
		ca := b.ContentAnalysis
		if !inRange(ca.LanguageQuality, 80, 100) || !inRange(ca.CitationQuality, 75, 100) ||
			!inRange(ca.FactDensity, 70, 90) || !inRange(ca.SensationalismScore, 10, 40) {
			t.Errorf("seed %d: ContentAnalysis = %+v out of credible bands", seed, *ca)
		}
		if b.SourceCredibility.Rating != 9.2 || b.SourceCredibility.FactualReporting != "High" {
			t.Errorf("seed %d: SourceCredibility = %+v", seed, *b.SourceCredibility)
		}
	}
}

func TestNews_SensationalHeadlinePenalty(t *testing.T) {
	env := testEnv()
	in := urlInput("https://www.reuters.com/world/breaking-shocking-news-today")

	for seed := uint64(0); seed < 30; seed++ {
		b, err := News(in, env, NewRand(seed, 0))
		if err != nil {
			t.Fatalf("News() error = %v", err)
		}
		if !inRange(b.Primary.TrustScore, 67, 77) {
			t.Errorf("seed %d: TrustScore = %v, want [67,77]", seed, b.Primary.TrustScore)
		}
		if !b.Article.Sensational || !inRange(b.ContentAnalysis.SensationalismScore, 70, 100) {
			t.Errorf("seed %d: sensational article not flagged: %+v", seed, *b.ContentAnalysis)
		}
	}
}

func TestNews_UnknownHostFallsBackToUnknownBlog(t *testing.T) {
	env := testEnv()
	in := urlInput("https://totally-real-news.example/story")

	for seed := uint64(0); seed < 30; seed++ {
		b, err := News(in, env, NewRand(seed, 0))
		if err != nil {
			t.Fatalf("News() error = %v", err)
		}
		if b.Article.Source != "Unknown Blog" || b.Article.Author != "Unknown" {
			t.Errorf("seed %d: Article = %+v, want Unknown Blog by Unknown", seed, *b.Article)
		}
		if !inRange(b.Primary.TrustScore, 5, 15) {
			t.Errorf("seed %d: TrustScore = %v, want [5,15]", seed, b.Primary.TrustScore)
		}
		if model.VerdictFor(b.Primary.TrustScore) != model.VerdictSuspicious {
			t.Errorf("seed %d: unknown blog should be suspicious", seed)
		}
	}
}

func TestNews_UsesFetchedHeadline(t *testing.T) {
	in := urlInput("https://apnews.com/article/abc123")
	in.Headline = "You Won't Believe This Budget"

	b, err := News(in, testEnv(), NewRand(1, 0))
	if err != nil {
		t.Fatalf("News() error = %v", err)
	}
	if b.Article.Headline != in.Headline || !b.Article.Sensational {
		t.Errorf("Article = %+v, want fetched sensational headline", *b.Article)
	}
}

func TestNews_TextNamingSource(t *testing.T) {
	in := Input{
		Item: &model.ContentItem{Kind: model.KindText, Text: "BBC reports that the river flooded. More later."},
		Now:  testNow,
	}
	b, err := News(in, testEnv(), NewRand(3, 0))
	if err != nil {
		t.Fatalf("News() error = %v", err)
	}
	if b.Article.Source != "BBC News" {
		t.Errorf("Source = %q, want BBC News", b.Article.Source)
	}
	if b.Article.Headline != "BBC reports that the river flooded." {
		t.Errorf("Headline = %q", b.Article.Headline)
	}
}

func TestNews_InvalidURL(t *testing.T) {
	tests := []string{
		"not a url",
		"ftp://reuters.com/file",
		"http://127.0.0.1/admin",
		"http://localhost/x",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := News(urlInput(raw), testEnv(), NewRand(1, 0)); err == nil {
				t.Errorf("News(%q) error = nil, want error", raw)
			}
		})
	}
}

func TestResolveAttribution(t *testing.T) {
	env := testEnv()

	tests := []struct {
		name       string
		in         Input
		wantSource string
		wantErr    bool
	}{
		{"registered host", urlInput("https://www.reuters.com/world/plan"), "Reuters", false},
		{"unknown host", urlInput("https://totally-real-news.example/story"), "Unknown Blog", false},
		{"text naming source", Input{Item: &model.ContentItem{Kind: model.KindText, Text: "BBC reports rain."}}, "BBC News", false},
		{"text without source", Input{Item: &model.ContentItem{Kind: model.KindText, Text: "it rained"}}, "", true},
		{"blocked url", urlInput("http://127.0.0.1/admin"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := resolveAttribution(tt.in, env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveAttribution() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && a.Source.Name != tt.wantSource {
				t.Errorf("Source = %q, want %q", a.Source.Name, tt.wantSource)
			}
		})
	}
}

func TestCrossCheck(t *testing.T) {
	env := testEnv()

	for seed := uint64(0); seed < 30; seed++ {
		b, err := CrossCheck(urlInput("https://bbc.co.uk/news/x"), env, NewRand(seed, 0))
		if err != nil {
			t.Fatalf("CrossCheck() error = %v", err)
		}
		cc := b.CrossChecking
		if n := len(cc.VerifiedSources); n < 1 || n > 2 || len(cc.ContradictorySources) != 0 {
			t.Errorf("seed %d: credible cross-check = %+v", seed, *cc)
		}
		if cc.SimilarReports < 5 || cc.SimilarReports > 19 {
			t.Errorf("seed %d: SimilarReports = %d, want 5..19", seed, cc.SimilarReports)
		}
		if b.Primary != nil {
			t.Errorf("seed %d: cross-check must not carry a primary signal", seed)
		}

		b, err = CrossCheck(urlInput("https://unknown.example/x"), env, NewRand(seed, 0))
		if err != nil {
			t.Fatalf("CrossCheck() error = %v", err)
		}
		cc = b.CrossChecking
		if n := len(cc.ContradictorySources); n < 1 || n > 2 || len(cc.VerifiedSources) != 0 {
			t.Errorf("seed %d: non-credible cross-check = %+v", seed, *cc)
		}
		if cc.SimilarReports < 0 || cc.SimilarReports > 2 {
			t.Errorf("seed %d: SimilarReports = %d, want 0..2", seed, cc.SimilarReports)
		}
	}
}

func TestImpact(t *testing.T) {
	env := testEnv()

	t.Run("sampled shares", func(t *testing.T) {
		for seed := uint64(0); seed < 30; seed++ {
			b, err := Impact(urlInput("https://cnn.com/2026/03/01/calm-weather-report"), env, NewRand(seed, 0))
			if err != nil {
				t.Fatalf("Impact() error = %v", err)
			}
			m := b.SocialMetrics
			if m.Shares < 100 || m.Shares > 50099 || !inRange(m.Engagement, 2, 10) || !inRange(m.ViralityScore, 20, 70) {
				t.Errorf("seed %d: SocialMetrics = %+v", seed, *m)
			}
			if b.Primary != nil || len(b.Indicators) != 0 {
				t.Errorf("seed %d: impact must not affect trust", seed)
			}
		}
	})

	t.Run("sensational virality", func(t *testing.T) {
		b, err := Impact(urlInput("https://cnn.com/breaking-shocking-scandal"), env, NewRand(5, 0))
		if err != nil {
			t.Fatalf("Impact() error = %v", err)
		}
		if !inRange(b.SocialMetrics.ViralityScore, 60, 100) {
			t.Errorf("ViralityScore = %v, want [60,100]", b.SocialMetrics.ViralityScore)
		}
	})

	t.Run("fetched share count", func(t *testing.T) {
		in := urlInput("https://cnn.com/story")
		shares := 42
		in.ShareCount = &shares
		b, err := Impact(in, env, NewRand(5, 0))
		if err != nil {
			t.Fatalf("Impact() error = %v", err)
		}
		if b.SocialMetrics.Shares != 42 {
			t.Errorf("Shares = %d, want 42", b.SocialMetrics.Shares)
		}
	})
}

func TestMedia(t *testing.T) {
	item := &model.ContentItem{Kind: model.KindImage, Filename: "photo.jpg", MediaType: "image/jpeg"}
	var sawVerified, sawSuspicious bool

	for seed := uint64(0); seed < 100; seed++ {
		b, err := Media(Input{Item: item, Now: testNow}, testEnv(), NewRand(seed, 0))
		if err != nil {
			t.Fatalf("Media() error = %v", err)
		}
		p := b.Primary
		switch {
		case inRange(p.TrustScore, 70, 100):
			sawVerified = true
		case inRange(p.TrustScore, 10, 50):
			sawSuspicious = true
		default:
			t.Errorf("seed %d: TrustScore = %v outside both bands", seed, p.TrustScore)
		}
		if !inRange(p.BaseConfidence, 70, 100) {
			t.Errorf("seed %d: BaseConfidence = %v", seed, p.BaseConfidence)
		}
		if !slices.Contains(mediaVerifiedReasons, p.Verified.Primary) ||
			!slices.Contains(mediaSuspiciousReasons, p.Suspicious.Primary) {
			t.Errorf("seed %d: unexpected reasons %q / %q", seed, p.Verified.Primary, p.Suspicious.Primary)
		}
		if !b.MediaChecks.MediaAuthenticity || b.MediaChecks.TextAnalysis {
			t.Errorf("seed %d: MediaChecks = %+v for an image", seed, *b.MediaChecks)
		}
	}
	if !sawVerified || !sawSuspicious {
		t.Errorf("100 seeds should reach both bands: verified=%v suspicious=%v", sawVerified, sawSuspicious)
	}
}

func TestContent_TextChecks(t *testing.T) {
	in := Input{Item: &model.ContentItem{Kind: model.KindText, Text: "Breaking news!!!"}, Now: testNow}
	b, err := Content(in, testEnv(), NewRand(9, 0))
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if b.Evaluator != EvaluatorContent {
		t.Errorf("Evaluator = %q, want %q", b.Evaluator, EvaluatorContent)
	}
	if !b.MediaChecks.TextAnalysis || !b.MediaChecks.SentimentAnalysis || b.MediaChecks.MediaAuthenticity {
		t.Errorf("MediaChecks = %+v for text", *b.MediaChecks)
	}
}

func TestSocial(t *testing.T) {
	in := socialInput("https://www.instagram.com/p/abc", model.PlatformInstagram)
	for seed := uint64(0); seed < 30; seed++ {
		b, err := Social(in, testEnv(), NewRand(seed, 0))
		if err != nil {
			t.Fatalf("Social() error = %v", err)
		}
		p := b.Primary
		if !inRange(p.TrustScore, 10, 50) && !inRange(p.TrustScore, 70, 100) {
			t.Errorf("seed %d: TrustScore = %v outside both bands", seed, p.TrustScore)
		}
		if p.Verified.Primary != "Content appears authentic with no manipulation detected" {
			t.Errorf("seed %d: Verified.Primary = %q", seed, p.Verified.Primary)
		}
		if !reflect.DeepEqual(p.Suspicious.Sources, []string{model.PlatformInstagram}) {
			t.Errorf("seed %d: Sources = %v", seed, p.Suspicious.Sources)
		}
	}
}

func TestChannel(t *testing.T) {
	env := testEnv()

	t.Run("unverified channel stays in low band", func(t *testing.T) {
		in := socialInput("https://www.youtube.com/@RandomUser123", model.PlatformYouTube)
		for seed := uint64(0); seed < 30; seed++ {
			b, err := Channel(in, env, NewRand(seed, 0))
			if err != nil {
				t.Fatalf("Channel() error = %v", err)
			}
			if b.ChannelInfo.Name != "RandomUser123" || b.ChannelInfo.Verified {
				t.Errorf("seed %d: ChannelInfo = %+v", seed, *b.ChannelInfo)
			}
			if !inRange(b.Primary.TrustScore, 20, 60) {
				t.Errorf("seed %d: TrustScore = %v, want [20,60]", seed, b.Primary.TrustScore)
			}
			if !inRange(b.VideoAnalysis.ChannelReliability, 30, 70) {
				t.Errorf("seed %d: ChannelReliability = %v", seed, b.VideoAnalysis.ChannelReliability)
			}
		}
	})

	t.Run("verified channel", func(t *testing.T) {
		in := socialInput("https://youtube.com/c/ScienceDaily/videos", model.PlatformYouTube)
		for seed := uint64(0); seed < 30; seed++ {
			b, err := Channel(in, env, NewRand(seed, 0))
			if err != nil {
				t.Fatalf("Channel() error = %v", err)
			}
			if b.ChannelInfo.Name != "ScienceDaily" || !b.ChannelInfo.Verified {
				t.Errorf("seed %d: ChannelInfo = %+v", seed, *b.ChannelInfo)
			}
			if !inRange(b.Primary.TrustScore, 20, 60) && !inRange(b.Primary.TrustScore, 70, 100) {
				t.Errorf("seed %d: TrustScore = %v", seed, b.Primary.TrustScore)
			}
			if !inRange(b.VideoAnalysis.ChannelReliability, 80, 100) {
				t.Errorf("seed %d: ChannelReliability = %v", seed, b.VideoAnalysis.ChannelReliability)
			}
			if v := b.ChannelInfo.Views; v < 1000 || v > 10_001_000 {
				t.Errorf("seed %d: Views = %d", seed, v)
			}
		}
	})

	t.Run("video url attributes a registered channel", func(t *testing.T) {
		in := socialInput("https://www.youtube.com/watch?v=dQw4w9WgXcQ", model.PlatformYouTube)
		b, err := Channel(in, env, NewRand(11, 0))
		if err != nil {
			t.Fatalf("Channel() error = %v", err)
		}
		if _, ok := env.Registry.ChannelByHandle(b.ChannelInfo.Name); !ok {
			t.Errorf("ChannelInfo.Name = %q, want a registered channel", b.ChannelInfo.Name)
		}
		if !slices.Contains(sampleVideoTitles, b.ChannelInfo.VideoTitle) {
			t.Errorf("VideoTitle = %q, want a sampled title", b.ChannelInfo.VideoTitle)
		}
	})
}

func TestPlan(t *testing.T) {
	env := testEnv()

	tests := []struct {
		name string
		item *model.ContentItem
		want []string
	}{
		{"image", &model.ContentItem{Kind: model.KindImage}, []string{EvaluatorMedia}},
		{"audio", &model.ContentItem{Kind: model.KindAudio}, []string{EvaluatorMedia}},
		{"text without source", &model.ContentItem{Kind: model.KindText, Text: "Breaking news!!!"}, []string{EvaluatorContent}},
		{"text naming source", &model.ContentItem{Kind: model.KindText, Text: "Reuters says rates hold"},
			[]string{EvaluatorNews, EvaluatorCrossCheck, EvaluatorImpact}},
		{"url", &model.ContentItem{Kind: model.KindURL, URL: "https://example.com"},
			[]string{EvaluatorNews, EvaluatorCrossCheck, EvaluatorImpact}},
		{"youtube", &model.ContentItem{Kind: model.KindSocial, Platform: model.PlatformYouTube},
			[]string{EvaluatorChannel, EvaluatorImpact}},
		{"tiktok", &model.ContentItem{Kind: model.KindSocial, Platform: model.PlatformTikTok},
			[]string{EvaluatorSocial, EvaluatorImpact}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range Plan(tt.item, env) {
				got = append(got, e.Name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Plan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	env := testEnv()
	in := urlInput("https://www.reuters.com/world/government-announces-infrastructure-plan")
	plan := Plan(in.Item, env)

	first, err := Run(t.Context(), plan, in, env, NewRand(42, 7))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := Run(t.Context(), plan, in, env, NewRand(42, 7))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed should produce identical signals")
	}
	if len(first) != 3 || first[0].Evaluator != EvaluatorNews || first[0].Primary == nil {
		t.Errorf("Run() bundles out of plan order: %+v", first)
	}
}

func TestRun_EvaluatorFailure(t *testing.T) {
	errBoom := errors.New("boom")
	plan := []Evaluator{
		{Name: "ok", Fn: Media},
		{Name: "broken", Fn: func(Input, Env, *rand.Rand) (model.SignalBundle, error) {
			return model.SignalBundle{}, errBoom
		}},
	}
	in := Input{Item: &model.ContentItem{Kind: model.KindImage}, Now: testNow}

	_, err := Run(t.Context(), plan, in, testEnv(), NewRand(1, 1))
	if !model.HasCode(err, model.ErrCodeSignalEvaluation) {
		t.Fatalf("Run() error = %v, want %s", err, model.ErrCodeSignalEvaluation)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("Run() error should wrap the evaluator error")
	}
}

func TestSensationalMarkers(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Breaking news!!!", true},
		{"BREAKING: Markets fall", true},
		{"breaking shocking news today", true},
		{"You Won't Believe What Happened Next", true},
		{"Government Announces New Healthcare Policy", false},
		{"Heartbreaking loss for the team", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsSensational(tt.text); got != tt.want {
				t.Errorf("IsSensational(%q) = %v, want %v (markers %v)", tt.text, got, tt.want, SensationalMarkers(tt.text))
			}
		})
	}
}

func TestHeadlineFromURL(t *testing.T) {
	guard := security.NewSSRFGuard()
	tests := []struct {
		raw  string
		want string
	}{
		{"https://reuters.com/world/us/fed-holds-rates-steady-2026-03-01/", "fed holds rates steady 2026 03 01"},
		{"https://example.com/news/big_story.html", "big story"},
		{"https://example.com/2026/03/01", "example.com"},
		{"https://example.com", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := guard.ParseURL(tt.raw)
			if err != nil {
				t.Fatalf("ParseURL() error = %v", err)
			}
			if got := HeadlineFromURL(u); got != tt.want {
				t.Errorf("HeadlineFromURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
