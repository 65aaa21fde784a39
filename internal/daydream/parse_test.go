// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package daydream

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse_Strategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		strategy Strategy
		want     Scene
	}{
		{
			name:     "clean json",
			raw:      `{"narrator":"Mist rolls over the lake.","npc_say":"Welcome back.","options":["Wave","Walk on"]}`,
			strategy: StrategyJSON,
			want:     Scene{Narrator: "Mist rolls over the lake.", NPCSay: "Welcome back.", Options: []string{"Wave", "Walk on"}},
		},
		{
			name:     "fenced json",
			raw:      "```json\n{\"narrator\":\"A door creaks.\",\"npc_say\":\"\",\"options\":[\"Enter\"]}\n```",
			strategy: StrategyFenced,
			want:     Scene{Narrator: "A door creaks.", Options: []string{"Enter"}},
		},
		{
			name:     "json in prose",
			raw:      `Here is the next scene: {"narrator":"Stars flicker.","npc_say":"Look up.","options":["Look up","Close your eyes"]} Enjoy!`,
			strategy: StrategyExtracted,
			want:     Scene{Narrator: "Stars flicker.", NPCSay: "Look up.", Options: []string{"Look up", "Close your eyes"}},
		},
		{
			name:     "trailing comma and smart quotes",
			raw:      `{“narrator”: “The tea is warm.”, “options”: [“Sip”, “Wait”,],}`,
			strategy: StrategyRepaired,
			want:     Scene{Narrator: "The tea is warm.", Options: []string{"Sip", "Wait"}},
		},
		{
			name:     "alternate keys",
			raw:      `{"narration":"Snow falls.","npc":{"name":"Fox","say":"Follow me."},"choices":[{"text":"Follow"},{"text":"Stay"}]}`,
			strategy: StrategyJSON,
			want:     Scene{Narrator: "Snow falls.", NPCSay: "Follow me.", Options: []string{"Follow", "Stay"}},
		},
		{
			name:     "unquoted keys fall to fields",
			raw:      `{narrator: "The bridge sways.", npc_say: "Careful!", options: ["Cross", "Turn back"]}`,
			strategy: StrategyFields,
			want:     Scene{Narrator: "The bridge sways.", NPCSay: "Careful!", Options: []string{"Cross", "Turn back"}},
		},
		{
			name:     "fields with escaped quotes and cut off options",
			raw:      `narrator: "She says \"hello\" softly", options: ["Reply", "Smile"`,
			strategy: StrategyFields,
			want:     Scene{Narrator: `She says "hello" softly`, Options: []string{"Reply", "Smile"}},
		},
		{
			name: "labeled",
			raw: "**Narrator:** The garden glows at dusk.\n" +
				"Fireflies rise.\n" +
				"NPC: Do you hear that?\n" +
				"Options:\n1. Listen\n2. Follow the light\n- Go home",
			strategy: StrategyLabeled,
			want: Scene{
				Narrator: "The garden glows at dusk.\nFireflies rise.",
				NPCSay:   "Do you hear that?",
				Options:  []string{"Listen", "Follow the light", "Go home"},
			},
		},
		{
			name:     "chinese labels",
			raw:      "旁白：雨停了。\n对白：你好呀。\n选项：\n1. 打招呼\n2. 离开",
			strategy: StrategyLabeled,
			want:     Scene{Narrator: "雨停了。", NPCSay: "你好呀。", Options: []string{"打招呼", "离开"}},
		},
		{
			name:     "plaintext with trailing list",
			raw:      "You find a small boat by the shore.\n\n1. Get in\n2. Push it away",
			strategy: StrategyPlaintext,
			want:     Scene{Narrator: "You find a small boat by the shore.", Options: []string{"Get in", "Push it away"}},
		},
		{
			name:     "plaintext only",
			raw:      "The wind hums a song you almost remember.",
			strategy: StrategyPlaintext,
			want:     Scene{Narrator: "The wind hums a song you almost remember.", Options: DefaultOptions},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, strategy := Parse(tt.raw)
			if strategy != tt.strategy {
				t.Errorf("expected strategy %s, got %s", tt.strategy, strategy)
			}
			if got.Narrator != tt.want.Narrator {
				t.Errorf("expected narrator %q, got %q", tt.want.Narrator, got.Narrator)
			}
			if got.NPCSay != tt.want.NPCSay {
				t.Errorf("expected npc_say %q, got %q", tt.want.NPCSay, got.NPCSay)
			}
			if !reflect.DeepEqual(got.Options, tt.want.Options) {
				t.Errorf("expected options %q, got %q", tt.want.Options, got.Options)
			}
		})
	}
}

func TestParse_NormalizesOptions(t *testing.T) {
	t.Parallel()

	raw := `{"narrator":"  Dawn.  ","options":["Run","run"," ","Hide","Shout","Sing","Dance"]}`
	got, _ := Parse(raw)

	if got.Narrator != "Dawn." {
		t.Errorf("expected trimmed narrator, got %q", got.Narrator)
	}
	want := []string{"Run", "Hide", "Shout", "Sing"}
	if !reflect.DeepEqual(got.Options, want) {
		t.Errorf("expected %q, got %q", want, got.Options)
	}
}

func TestParse_JSONWithoutNarratorFallsThrough(t *testing.T) {
	t.Parallel()

	_, strategy := Parse(`{"options":["a","b"]}`)
	if strategy == StrategyJSON {
		t.Error("expected JSON without narrator not to be accepted as json")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate(`{"narrator":"ok"}`); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Validate("   "); !errors.Is(err, ErrEmptyScene) {
		t.Errorf("expected ErrEmptyScene, got %v", err)
	}
}
