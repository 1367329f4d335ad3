package tokenizers

import (
	"bufio"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/sebpuetz/tokenizers/api"
	"github.com/sebpuetz/tokenizers/models"
)

// Trainer learns a model from word counts. The tokenizer feeds it the
// pre-tokenized words of the training files and swaps in the model it
// returns.
type Trainer interface {
	// ShouldShowProgress reports whether training progress should be
	// logged.
	ShouldShowProgress() bool
	// Train builds a model from word counts. It also returns the special
	// tokens to register on the tokenizer alongside the model.
	Train(words map[string]uint32) (models.Model, []AddedToken, error)
	// ProcessTokens folds the tokens of one sentence into the counts.
	ProcessTokens(words map[string]uint32, tokens []string)
}

// Train counts words in the given files through the configured
// normalization and pre-tokenization, trains a new model and replaces the
// current one. Special tokens returned by the trainer are registered.
func (t *Tokenizer) Train(trainer Trainer, files []string) error {
	words, err := t.wordCount(trainer, files)
	if err != nil {
		return err
	}

	model, specialTokens, err := trainer.Train(words)
	if err != nil {
		return err
	}
	t.model = model
	t.AddSpecialTokens(specialTokens)
	return nil
}

// wordCount accumulates word counts over all files, processing files in
// parallel unless batch parallelism is disabled. Empty files simply
// contribute nothing.
func (t *Tokenizer) wordCount(trainer Trainer, files []string) (map[string]uint32, error) {
	total := make(map[string]uint32)
	var mu sync.Mutex

	var g errgroup.Group
	if !parallelismEnabled() {
		g.SetLimit(1)
	}
	for _, file := range files {
		file := file
		g.Go(func() error {
			words, err := t.wordCountFile(trainer, file)
			if err != nil {
				return err
			}
			mu.Lock()
			for w, c := range words {
				total[w] += c
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

func (t *Tokenizer) wordCountFile(trainer Trainer, file string) (map[string]uint32, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open training file %q", file)
	}
	defer f.Close()

	if trainer.ShouldShowProgress() {
		klog.Infof("Counting words in %s", file)
	}

	words := make(map[string]uint32)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		ns := api.NewNormalizedString(scanner.Text())
		if t.normalizer != nil {
			if err := t.normalizer.Normalize(ns); err != nil {
				return nil, err
			}
		}
		preTokens, err := t.preTokenize(ns)
		if err != nil {
			return nil, err
		}
		tokens := make([]string, len(preTokens))
		for i, pt := range preTokens {
			tokens[i] = pt.Value
		}
		trainer.ProcessTokens(words, tokens)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read training file %q", file)
	}
	return words, nil
}
