// Package rules loads rule decks from local files.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/ruletype/internal/model"
)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".toml", ".yaml", ".yml", ".tsv", ".csv"}

type deckFile struct {
	Game  gameFile   `toml:"game" yaml:"game"`
	Rules []ruleFile `toml:"rule" yaml:"rules"`
}

type gameFile struct {
	Title      textFile   `toml:"title" yaml:"title"`
	Components []textFile `toml:"component" yaml:"components"`
	Actions    []textFile `toml:"action" yaml:"actions"`
	Victory    textFile   `toml:"victory" yaml:"victory"`
}

type textFile struct {
	Primary   string `toml:"primary" yaml:"primary"`
	Secondary string `toml:"secondary" yaml:"secondary"`
}

type ruleFile struct {
	Num       int    `toml:"num" yaml:"num"`
	Primary   string `toml:"primary" yaml:"primary"`
	Secondary string `toml:"secondary" yaml:"secondary"`
}

// Load reads a deck, choosing the format from the file extension.
func Load(path string) (model.Deck, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		var file deckFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return model.Deck{}, fmt.Errorf("failed to decode rules: %w", err)
		}
		return file.deck()
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return model.Deck{}, err
		}
		var file deckFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return model.Deck{}, fmt.Errorf("failed to decode rules: %w", err)
		}
		return file.deck()
	case ".tsv", ".csv":
		return loadTabular(path, ext == ".tsv")
	default:
		return model.Deck{}, fmt.Errorf("unsupported rules format %q (want one of %s)", ext, strings.Join(Extensions, ", "))
	}
}

func (f deckFile) deck() (model.Deck, error) {
	rules := make([]model.Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rule := model.Rule{Num: r.Num, Primary: strings.TrimSpace(r.Primary), Secondary: strings.TrimSpace(r.Secondary)}
		if !Keep(rule) {
			continue
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return model.Deck{}, fmt.Errorf("rule list is empty")
	}
	game := model.GameInfo{
		Title:   f.Game.Title.bilingual(),
		Victory: f.Game.Victory.bilingual(),
	}
	for _, c := range f.Game.Components {
		game.Components = append(game.Components, c.bilingual())
	}
	for _, a := range f.Game.Actions {
		game.Actions = append(game.Actions, a.bilingual())
	}
	return model.Deck{Game: game, Rules: rules}, nil
}

func (t textFile) bilingual() model.Bilingual {
	return model.Bilingual{Primary: strings.TrimSpace(t.Primary), Secondary: strings.TrimSpace(t.Secondary)}
}

// Keep reports whether a loaded rule is usable: it needs a non-zero number
// and primary text.
func Keep(rule model.Rule) bool {
	return rule.Num != 0 && rule.Primary != ""
}
