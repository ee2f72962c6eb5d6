package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/verte-zerg/ruletype/internal/model"
)

// loadTabular reads num, primary and secondary columns. A first row whose
// number column is not an integer is treated as a header.
func loadTabular(path string, tabs bool) (model.Deck, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.Deck{}, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only rules file.
			_ = cerr
		}
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if tabs {
		reader.Comma = '\t'
		reader.LazyQuotes = true
	}

	var rules []model.Rule
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Deck{}, fmt.Errorf("failed to read rules: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			// Non-numeric ids load as zero and are dropped below.
			num = 0
		}
		rule := model.Rule{Num: num, Primary: strings.TrimSpace(record[1])}
		if len(record) > 2 {
			rule.Secondary = strings.TrimSpace(record[2])
		}
		if !Keep(rule) {
			continue
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return model.Deck{}, fmt.Errorf("rule list is empty")
	}
	return model.Deck{Rules: rules}, nil
}
