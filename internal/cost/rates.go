package cost

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadRates reads a pricing table from a yaml file. An empty path returns
// DefaultRates. Models present in the file override defaults; models absent
// from the file keep their default pricing.
func LoadRates(path string) (Rates, error) {
	rates := DefaultRates()
	if path == "" {
		return rates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, eris.Wrapf(err, "cost: read rates file %s", path)
	}

	var file Rates
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Rates{}, eris.Wrapf(err, "cost: parse rates file %s", path)
	}

	for model, rate := range file.Anthropic {
		rates.Anthropic[model] = rate
	}
	if file.Jina.PerMTok > 0 {
		rates.Jina = file.Jina
	}

	return rates, nil
}
