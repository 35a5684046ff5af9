package risk

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"busrisk/internal/errors"
)

// Sources are the text inputs an Oracle is built from. Any of them may be nil.
type Sources struct {
	// Departed lists one departed author per non-blank line
	Departed io.Reader
	// Overrides holds one author=probability per non-blank line
	Overrides io.Reader
	// Team is a TOML document with a departed list and a risks table
	Team io.Reader
}

// TeamFile is the TOML form of the departed list and risk overrides:
//
//	departed = ["carol"]
//
//	[risks]
//	alice = 0.4
type TeamFile struct {
	Departed []string           `toml:"departed"`
	Risks    map[string]float64 `toml:"risks"`
}

// Build creates an Oracle from cfg and the given sources. Departed authors
// always report a risk of 1.0, whatever their override says.
func Build(cfg Config, src Sources) (*Oracle, error) {
	o := NewOracle(cfg)

	if src.Overrides != nil {
		overrides, err := ParseOverrides(src.Overrides)
		if err != nil {
			return nil, err
		}
		for author, r := range overrides {
			o.setOverride(author, r)
		}
	}

	if src.Team != nil {
		team, err := ParseTeamFile(src.Team)
		if err != nil {
			return nil, err
		}
		for author, r := range team.Risks {
			if err := checkProbability(author, r); err != nil {
				return nil, err
			}
			o.setOverride(author, r)
		}
		for _, author := range team.Departed {
			o.markDeparted(author)
		}
	}

	if src.Departed != nil {
		departed, err := ParseDeparted(src.Departed)
		if err != nil {
			return nil, err
		}
		for _, author := range departed {
			o.markDeparted(author)
		}
	}

	return o, nil
}

// Load opens the named files (empty names are skipped) and builds an Oracle
func Load(cfg Config, departedPath, overridesPath, teamPath string) (*Oracle, error) {
	var src Sources
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	open := func(path string) (io.Reader, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "cannot open risk input", err).WithDetails(map[string]interface{}{
				"path": path,
			})
		}
		closers = append(closers, f)
		return f, nil
	}

	var err error
	if src.Departed, err = open(departedPath); err != nil {
		return nil, err
	}
	if src.Overrides, err = open(overridesPath); err != nil {
		return nil, err
	}
	if src.Team, err = open(teamPath); err != nil {
		return nil, err
	}

	return Build(cfg, src)
}

// ParseDeparted reads one author name per non-blank line
func ParseDeparted(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.ParseError, "reading departed authors", err)
	}
	return names, nil
}

// ParseOverrides reads author=probability lines. The last '=' separates the
// name from the value, so names may themselves contain '='.
func ParseOverrides(r io.Reader) (map[string]float64, error) {
	overrides := make(map[string]float64)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		idx := strings.LastIndex(line, "=")
		if idx < 0 {
			return nil, overrideError(lineNum, line, fmt.Errorf("missing '='"))
		}
		author := strings.TrimSpace(line[:idx])
		if author == "" {
			return nil, overrideError(lineNum, line, fmt.Errorf("missing author name"))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(line[idx+1:]), 64)
		if err != nil {
			return nil, overrideError(lineNum, line, err)
		}
		if err := checkProbability(author, value); err != nil {
			return nil, err
		}
		overrides[author] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.ParseError, "reading risk overrides", err)
	}
	return overrides, nil
}

// ParseTeamFile decodes a TOML team file
func ParseTeamFile(r io.Reader) (*TeamFile, error) {
	var team TeamFile
	if err := toml.NewDecoder(r).Decode(&team); err != nil {
		return nil, errors.New(errors.ParseError, "invalid team file", err)
	}
	return &team, nil
}

func checkProbability(author string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errors.Newf(errors.ParseError, "risk for %q must be within [0, 1], got %v", author, p)
	}
	return nil
}

func overrideError(lineNum int, line string, cause error) error {
	return errors.New(errors.ParseError, "malformed risk override", cause).WithDetails(map[string]interface{}{
		"line":    lineNum,
		"content": line,
	})
}
