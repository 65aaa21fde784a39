// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package companion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/soulbloom/internal/daydream"
	"github.com/tomtom215/soulbloom/internal/fallback"
	"github.com/tomtom215/soulbloom/internal/journal"
	"github.com/tomtom215/soulbloom/internal/openrouter"
	"github.com/tomtom215/soulbloom/internal/supabase"
)

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "A Quiet Walk", "A Quiet Walk"},
		{"labeled with period", "Title: A Quiet Walk.", "A Quiet Walk"},
		{"quoted", `"Rain on the Window"`, "Rain on the Window"},
		{"cjk quotes", "「雨の日」", "雨の日"},
		{"multi line", "\n\nSunday Pancakes\nThis title reflects...", "Sunday Pancakes"},
		{"long", strings.Repeat("word ", 20), "word word word word word word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(&fakeRunner{content: tt.raw}, nil)
			defer svc.Close()

			res, err := svc.Title(context.Background(), TitleRequest{Content: "I walked to the lake."})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Title != tt.want || res.Fallback || res.Model != "m1" {
				t.Errorf("expected %q from m1, got %+v", tt.want, res)
			}
		})
	}
}

func TestTitle_LocalFallback(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{err: exhausted(FeatureTitle)}, nil)
	defer svc.Close()

	res, err := svc.Title(context.Background(), TitleRequest{Content: "Coffee with Ana today! It was lovely."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback || res.Title != "Coffee with Ana today" {
		t.Errorf("expected local fallback title, got %+v", res)
	}
}

func TestTitle_CanceledDoesNotFallBack(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{err: context.Canceled}, nil)
	defer svc.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Title(ctx, TitleRequest{Content: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// stallingCompleter blocks m1 until its attempt deadline and fails every
// other model with a 500.
type stallingCompleter struct{}

func (stallingCompleter) Complete(ctx context.Context, req *openrouter.Request) (*openrouter.Completion, error) {
	if req.Model == "m1" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, &openrouter.StatusError{StatusCode: 500, Message: "upstream", Model: req.Model}
}

func (stallingCompleter) Stream(ctx context.Context, req *openrouter.Request) (*openrouter.Stream, error) {
	return nil, &openrouter.StatusError{StatusCode: 500, Message: "upstream", Model: req.Model}
}

func TestLocalFallback_AfterAttemptTimeout(t *testing.T) {
	t.Parallel()

	runner := fallback.NewRunner(stallingCompleter{}, nil, fallback.Policy{AttemptTimeout: 50 * time.Millisecond})
	svc := newTestService(runner, nil)
	defer svc.Close()

	title, err := svc.Title(context.Background(), TitleRequest{Content: "Rain on the window. Tea."})
	if err != nil {
		t.Fatalf("expected local title, got error: %v", err)
	}
	if !title.Fallback || title.Title != "Rain on the window" {
		t.Errorf("expected local fallback title, got %+v", title)
	}

	bubble, err := svc.Bubble(context.Background(), BubbleRequest{})
	if err != nil {
		t.Fatalf("expected canned bubble, got error: %v", err)
	}
	if !bubble.Fallback || bubble.Message == "" {
		t.Errorf("expected canned bubble, got %+v", bubble)
	}
}

func TestLocalTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                      "Untitled",
		"   \n  ":               "Untitled",
		"今天下雨了。我很开心。":           "今天下雨了",
		"No punctuation at all": "No punctuation at all",
		strings.Repeat("a", 50): strings.Repeat("a", MaxTitleRunes),
	}
	for in, want := range tests {
		if got := LocalTitle(in); got != want {
			t.Errorf("LocalTitle(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestComment(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: "  That lake walk sounds\n\nso peaceful.  "}
	svc := newTestService(runner, nil)
	defer svc.Close()

	res, err := svc.Comment(context.Background(), CommentRequest{Content: "Walked to the lake.", Mood: "Calm", Persona: "sage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Comment != "That lake walk sounds so peaceful." {
		t.Errorf("unexpected comment %q", res.Comment)
	}

	system := runner.lastRequest().Messages[0].Content.String()
	if !strings.Contains(system, "Sage") || !strings.Contains(system, "mood is calm") {
		t.Errorf("expected persona and mood in system prompt, got %q", system)
	}
}

func TestComment_TruncatesAndFails(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{content: strings.Repeat("lovely ", 100)}, nil)
	defer svc.Close()
	res, err := svc.Comment(context.Background(), CommentRequest{Content: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(res.Comment)); n > MaxCommentRunes {
		t.Errorf("expected at most %d runes, got %d", MaxCommentRunes, n)
	}

	failing := newTestService(&fakeRunner{err: exhausted(FeatureComment)}, nil)
	defer failing.Close()
	if _, err := failing.Comment(context.Background(), CommentRequest{Content: "x"}); !errors.Is(err, fallback.ErrAllModelsFailed) {
		t.Errorf("expected ErrAllModelsFailed, got %v", err)
	}
}

func TestPrompts_CachedPerDay(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: `["What made you smile?", "What made you smile?", "Who did you miss today?", "What are you looking forward to?"]`}
	svc := newTestService(runner, nil)
	defer svc.Close()

	req := PromptsRequest{Mood: "happy", Topics: []string{"Family", "work", "family"}, Count: 2}
	first, err := svc.Prompts(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached || len(first.Prompts) != 2 || first.Prompts[1] != "Who did you miss today?" {
		t.Errorf("unexpected first result %+v", first)
	}

	// Topic order and case do not matter.
	second, err := svc.Prompts(context.Background(), PromptsRequest{Mood: "Happy", Topics: []string{"work", "family"}, Count: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached || second.Model != "m1" {
		t.Errorf("expected cached result with model, got %+v", second)
	}
	if runner.callCount() != 1 {
		t.Errorf("expected 1 model call, got %d", runner.callCount())
	}

	if _, err := svc.Prompts(context.Background(), PromptsRequest{Mood: "sad"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.callCount() != 2 {
		t.Errorf("expected a new call for a different mood, got %d", runner.callCount())
	}
	if stats := svc.PromptCacheStats(); stats.Hits != 1 {
		t.Errorf("expected 1 cache hit, got %+v", stats)
	}
}

func TestPrompts_ConcurrentCallsShareOneRequest(t *testing.T) {
	t.Parallel()

	runner := &slowRunner{fakeRunner: fakeRunner{content: "1. What went well?\n2. What was hard?\n3. What's next?"}, delay: 50 * time.Millisecond}
	svc := newTestService(runner, nil)
	defer svc.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Prompts(context.Background(), PromptsRequest{})
			if err != nil || len(res.Prompts) != 3 {
				t.Errorf("unexpected result %+v %v", res, err)
			}
		}()
	}
	wg.Wait()
	if n := runner.callCount(); n != 1 {
		t.Errorf("expected 1 model call, got %d", n)
	}
}

type slowRunner struct {
	fakeRunner
	delay time.Duration
}

func (s *slowRunner) Complete(ctx context.Context, feature string, models []string, req openrouter.Request, accept fallback.Validator) (*fallback.Result, error) {
	time.Sleep(s.delay)
	return s.fakeRunner.Complete(ctx, feature, models, req, accept)
}

func TestPrompts_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: "   "}
	svc := newTestService(runner, nil)
	defer svc.Close()

	if _, err := svc.Prompts(context.Background(), PromptsRequest{}); !errors.Is(err, fallback.ErrAllModelsFailed) {
		t.Fatalf("expected rejection, got %v", err)
	}
	runner.mu.Lock()
	runner.content = `["Better now?"]`
	runner.mu.Unlock()
	res, err := svc.Prompts(context.Background(), PromptsRequest{})
	if err != nil || res.Cached || res.Prompts[0] != "Better now?" {
		t.Errorf("expected fresh result, got %+v %v", res, err)
	}
}

func TestBubble(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: `"Hi Mira, the sun is out for you! ☀️"`}
	svc := newTestService(runner, nil)
	defer svc.Close()

	res, err := svc.Bubble(context.Background(), BubbleRequest{Name: "Mira", Mood: "happy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Message != "Hi Mira, the sun is out for you! ☀️" || res.Fallback {
		t.Errorf("unexpected bubble %+v", res)
	}
	if system := runner.lastRequest().Messages[0].Content.String(); !strings.Contains(system, "afternoon") {
		t.Errorf("expected time of day from clock, got %q", system)
	}
}

func TestBubble_CannedFallback(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{err: exhausted(FeatureBubble)}, nil)
	defer svc.Close()

	res, err := svc.Bubble(context.Background(), BubbleRequest{TimeOfDay: "night"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback || res.Message != cannedBubbles["night"] {
		t.Errorf("expected canned night greeting, got %+v", res)
	}
}

func TestTimeOfDay(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "night", 4: "night", 5: "morning", 11: "morning", 12: "afternoon", 17: "evening", 21: "evening", 22: "night"}
	for hour, want := range tests {
		if got := TimeOfDay(time.Date(2026, 1, 1, hour, 0, 0, 0, time.UTC)); got != want {
			t.Errorf("hour %d: expected %s, got %s", hour, want, got)
		}
	}
}

func TestChatMessages(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{}, func(c *Config) { c.Persona = "sunny" })
	defer svc.Close()

	history := make([]ChatMessage, 0, 30)
	for i := 0; i < 30; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, ChatMessage{Role: role, Content: "msg"})
	}
	msgs := svc.ChatMessages(ChatRequest{Messages: history, Mood: "tired", Name: "Kai"})

	if len(msgs) != MaxChatHistory+1 {
		t.Fatalf("expected %d messages, got %d", MaxChatHistory+1, len(msgs))
	}
	system := msgs[0].Content.String()
	for _, want := range []string{"Sunny", "mood is tired", "name is Kai"} {
		if !strings.Contains(system, want) {
			t.Errorf("expected system prompt to contain %q, got %q", want, system)
		}
	}
	if msgs[len(msgs)-1].Role != openrouter.RoleAssistant {
		t.Errorf("expected last history message kept, got role %s", msgs[len(msgs)-1].Role)
	}

	explicit := svc.ChatMessages(ChatRequest{Messages: history[:1], Persona: "SAGE"})
	if !strings.Contains(explicit[0].Content.String(), "Sage") {
		t.Error("expected requested persona to win over the default")
	}
}

func TestStreamChat(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: "data: hello\n\n"}
	svc := newTestService(runner, nil)
	defer svc.Close()

	var body string
	res, err := svc.StreamChat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}},
		func(s *openrouter.Stream) (bool, error) {
			data, err := io.ReadAll(s.Body)
			body = string(data)
			return true, err
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Model != "m1" || body != "data: hello\n\n" {
		t.Errorf("unexpected result %+v body %q", res, body)
	}
	if runner.lastRequest().Messages[0].Role != openrouter.RoleSystem {
		t.Error("expected system prompt first")
	}
}

func TestDaydream(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{content: "Narrator: The tide pulls back.\nNPC: \"Come closer.\"\nOptions:\n1. Step in\n2. Stay"}
	svc := newTestService(runner, nil)
	defer svc.Close()

	res, err := svc.Daydream(context.Background(), daydream.Request{Setting: "a beach"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Strategy != daydream.StrategyLabeled || res.Scene.Narrator != "The tide pulls back." {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Scene.Options) != 2 {
		t.Errorf("expected 2 options, got %v", res.Scene.Options)
	}

	blank := newTestService(&fakeRunner{content: "   "}, nil)
	defer blank.Close()
	if _, err := blank.Daydream(context.Background(), daydream.Request{}, ""); !errors.Is(err, daydream.ErrEmptyScene) {
		t.Errorf("expected ErrEmptyScene through the chain, got %v", err)
	}
}

func TestParseSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []Step
	}{
		{
			name: "objects",
			raw:  `[{"title":"Buy shoes","detail":"Pick a comfy pair."},{"step":"Run 1km","description":"Slowly."}]`,
			want: []Step{{"Buy shoes", "Pick a comfy pair."}, {"Run 1km", "Slowly."}},
		},
		{
			name: "wrapped",
			raw:  "```json\n{\"steps\": [\"Find a class\", \"Book a trial\"]}\n```",
			want: []Step{{Title: "Find a class"}, {Title: "Book a trial"}},
		},
		{
			name: "wrapped with other arrays",
			raw:  `{"alternatives":["Quit the job"],"steps":[{"title":"List costs"},{"title":"Ask a friend"}],"tags":["travel"]}`,
			want: []Step{{Title: "List costs"}, {Title: "Ask a friend"}},
		},
		{
			name: "wrapped under unknown key",
			raw:  `{"zeta":["Z step"],"alpha":["A step","B step"]}`,
			want: []Step{{Title: "A step"}, {Title: "B step"}},
		},
		{
			name: "numbered lines",
			raw:  "Here you go:\n1. Save money: put aside 10 a week\n2. Pick a city - somewhere warm\n3. Save money: again",
			want: []Step{{"Save money", "put aside 10 a week"}, {"Pick a city", "somewhere warm"}},
		},
		{
			name: "strings with labels",
			raw:  `["Step 1: Stretch", "Step 2: Walk"]`,
			want: []Step{{Title: "Stretch"}, {Title: "Walk"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseSteps(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d steps, got %+v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("step %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestSplitWish_RejectsTooFewSteps(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRunner{content: `["Just do it"]`}, nil)
	defer svc.Close()
	if _, err := svc.SplitWish(context.Background(), WishRequest{Wish: "Run a marathon"}); !errors.Is(err, fallback.ErrAllModelsFailed) {
		t.Errorf("expected rejection, got %v", err)
	}

	ok := newTestService(&fakeRunner{content: `["Walk daily", "Run weekly", "Sign up"]`}, nil)
	defer ok.Close()
	res, err := ok.SplitWish(context.Background(), WishRequest{Wish: "Run a marathon"})
	if err != nil || len(res.Steps) != 3 {
		t.Errorf("expected 3 steps, got %+v %v", res, err)
	}
}

func TestParseCharacter(t *testing.T) {
	t.Parallel()

	c, err := ParseCharacter("Sure!\n```json\n{\"character\":{\"name\":\"Mochi\",\"personality\":\"Shy but curious.\",\"traits\":\"shy, curious, soft, shy\",\"appearance\":\"A round white cat.\"}}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Mochi" || c.Description != "A round white cat." || len(c.Traits) != 3 {
		t.Errorf("unexpected character %+v", c)
	}

	if _, err := ParseCharacter(`{"traits":["x"]}`); err == nil {
		t.Error("expected error without name and description")
	}
	if _, err := ParseCharacter("I can't see an image."); err == nil {
		t.Error("expected error for prose")
	}
}

func TestAnalyzeCharacter_StoragePath(t *testing.T) {
	t.Parallel()

	images := &fakeImages{data: []byte("\x89PNG"), contentType: "image/png"}
	runner := &fakeRunner{content: `{"name":"Pip","personality":"Brave.","traits":["brave"],"description":"A tiny bird."}`}
	svc := newTestService(runner, func(c *Config) { c.Images = images; c.Bucket = "character-images" })
	defer svc.Close()

	res, err := svc.AnalyzeCharacter(context.Background(), Caller{UserID: "u1", Token: "jwt-u1"}, CharacterRequest{Path: "u1/pip.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Character.Name != "Pip" {
		t.Errorf("unexpected character %+v", res.Character)
	}
	if images.bucket != "character-images" || images.path != "u1/pip.png" {
		t.Errorf("unexpected download %s/%s", images.bucket, images.path)
	}
	if images.token != "jwt-u1" {
		t.Errorf("expected download with caller token, got %q", images.token)
	}
	parts := runner.lastRequest().Messages[0].Content.Parts
	if len(parts) != 2 || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,iVBORw==" {
		t.Errorf("expected inlined data URL, got %+v", parts)
	}
}

func TestAnalyzeCharacter_Errors(t *testing.T) {
	t.Parallel()

	owner := Caller{UserID: "u1", Token: "jwt-u1"}

	noStorage := newTestService(&fakeRunner{}, nil)
	defer noStorage.Close()
	if _, err := noStorage.AnalyzeCharacter(context.Background(), owner, CharacterRequest{Path: "u1/a.png"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	notImage := newTestService(&fakeRunner{}, func(c *Config) {
		c.Images = &fakeImages{data: []byte("hi"), contentType: "text/plain; charset=utf-8"}
		c.Bucket = "b"
	})
	defer notImage.Close()
	if _, err := notImage.AnalyzeCharacter(context.Background(), owner, CharacterRequest{Path: "u1/a.txt"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	if _, err := noStorage.AnalyzeCharacter(context.Background(), owner, CharacterRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest without image, got %v", err)
	}
}

func TestAnalyzeCharacter_StoragePathIsCallerScoped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		caller Caller
		path   string
		want   error
	}{
		{"anonymous", Caller{}, "u1/pip.png", ErrSignInRequired},
		{"missing token", Caller{UserID: "u1"}, "u1/pip.png", ErrSignInRequired},
		{"other user's folder", Caller{UserID: "u1", Token: "jwt-u1"}, "u2/secret.png", ErrForbidden},
		{"prefix lookalike", Caller{UserID: "u1", Token: "jwt-u1"}, "u10/secret.png", ErrForbidden},
		{"bucket root", Caller{UserID: "u1", Token: "jwt-u1"}, "secret.png", ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			images := &fakeImages{data: []byte("\x89PNG"), contentType: "image/png"}
			svc := newTestService(&fakeRunner{content: `{"name":"Pip","description":"A bird."}`}, func(c *Config) {
				c.Images = images
				c.Bucket = "character-images"
			})
			defer svc.Close()

			if _, err := svc.AnalyzeCharacter(context.Background(), tt.caller, CharacterRequest{Path: tt.path}); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if images.calls != 0 {
				t.Errorf("expected no download, got %d", images.calls)
			}
		})
	}
}

func TestAnalyzeCharacter_InvalidStoragePath(t *testing.T) {
	t.Parallel()

	owner := Caller{UserID: "u1", Token: "jwt-u1"}

	images := &fakeImages{data: []byte("\x89PNG"), contentType: "image/png"}
	svc := newTestService(&fakeRunner{}, func(c *Config) {
		c.Images = images
		c.Bucket = "character-images"
	})
	defer svc.Close()
	for _, p := range []string{"u1/../u2/x.png", "u1//x.png", "u1/./x.png"} {
		if _, err := svc.AnalyzeCharacter(context.Background(), owner, CharacterRequest{Path: p}); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%q: expected ErrInvalidRequest, got %v", p, err)
		}
	}
	if images.calls != 0 {
		t.Errorf("expected no download, got %d", images.calls)
	}

	rejecting := newTestService(&fakeRunner{}, func(c *Config) {
		c.Images = &fakeImages{err: fmt.Errorf("%w: %q", supabase.ErrInvalidPath, "u1/x.png")}
		c.Bucket = "character-images"
	})
	defer rejecting.Close()
	if _, err := rejecting.AnalyzeCharacter(context.Background(), owner, CharacterRequest{Path: "u1/x.png"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected storage path error to become ErrInvalidRequest, got %v", err)
	}
}

func TestWeeklyLetter_InlineEntriesSavedForUser(t *testing.T) {
	t.Parallel()

	letter := "Dear Mira,\n\nWhat a week of small brave steps. I loved reading about the lake.\n\nBloom"
	runner := &fakeRunner{content: letter}
	store := &fakeStore{}
	svc := newTestService(runner, func(c *Config) { c.Store = store })
	defer svc.Close()

	res, err := svc.WeeklyLetter(context.Background(), Caller{UserID: "u1", Token: "jwt"}, LetterRequest{
		Entries: []LetterEntry{{Content: "Walked to the lake.", Mood: "calm", Date: "2026-03-03"}},
		Name:    "Mira",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Letter != letter || !res.Saved || res.WeekStart != "2026-03-02" || res.EntryCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(store.letters) != 1 || store.letters[0].UserID != "u1" || store.letters[0].WeekStart != "2026-03-02" {
		t.Errorf("unexpected saved letters %+v", store.letters)
	}
	material := runner.lastRequest().Messages[1].Content.String()
	if !strings.Contains(material, "[Tue Mar 3] (mood: calm) Walked to the lake.") {
		t.Errorf("unexpected material %q", material)
	}
}

func TestWeeklyLetter_LoadsEntries(t *testing.T) {
	t.Parallel()

	store := &fakeStore{entries: []journal.Entry{
		{ID: "e1", Content: "Monday blues", Mood: "sad", CreatedAt: time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC)},
		{ID: "e2", Content: "  ", CreatedAt: time.Date(2026, 2, 24, 9, 0, 0, 0, time.UTC)},
	}}
	svc := newTestService(&fakeRunner{content: strings.Repeat("A gentle letter. ", 5)}, func(c *Config) { c.Store = store })
	defer svc.Close()

	res, err := svc.WeeklyLetter(context.Background(), Caller{UserID: "u1", Token: "jwt"}, LetterRequest{WeekStart: "2026-02-25"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EntryCount != 1 || res.WeekStart != "2026-02-23" {
		t.Errorf("unexpected result %+v", res)
	}
	if !store.from.Equal(time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)) || !store.to.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected range %s..%s", store.from, store.to)
	}
	if store.tokens[0] != "jwt" {
		t.Errorf("expected the caller's token, got %q", store.tokens[0])
	}
}

func TestWeeklyLetter_Errors(t *testing.T) {
	t.Parallel()

	noStore := newTestService(&fakeRunner{content: "x"}, nil)
	defer noStore.Close()
	if _, err := noStore.WeeklyLetter(context.Background(), Caller{UserID: "u1"}, LetterRequest{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	empty := newTestService(&fakeRunner{content: "x"}, func(c *Config) { c.Store = &fakeStore{} })
	defer empty.Close()
	if _, err := empty.WeeklyLetter(context.Background(), Caller{UserID: "u1"}, LetterRequest{}); !errors.Is(err, ErrNoEntries) {
		t.Errorf("expected ErrNoEntries, got %v", err)
	}
	if _, err := empty.WeeklyLetter(context.Background(), Caller{}, LetterRequest{}); !errors.Is(err, ErrNoEntries) {
		t.Errorf("expected ErrNoEntries for anonymous caller, got %v", err)
	}
	if _, err := empty.WeeklyLetter(context.Background(), Caller{}, LetterRequest{WeekStart: "March"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	short := newTestService(&fakeRunner{content: "Hi."}, nil)
	defer short.Close()
	_, err := short.WeeklyLetter(context.Background(), Caller{}, LetterRequest{Entries: []LetterEntry{{Content: "x"}}})
	if !errors.Is(err, fallback.ErrAllModelsFailed) {
		t.Errorf("expected short letter rejected, got %v", err)
	}
}

func TestWeeklyLetter_SaveFailureStillReturnsLetter(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("rls denied")}
	svc := newTestService(&fakeRunner{content: strings.Repeat("Dear you. ", 10)}, func(c *Config) { c.Store = store })
	defer svc.Close()

	res, err := svc.WeeklyLetter(context.Background(), Caller{UserID: "u1"}, LetterRequest{Entries: []LetterEntry{{Content: "x"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Saved {
		t.Error("expected Saved=false after a failed save")
	}
}
