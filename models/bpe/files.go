package bpe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sebpuetz/tokenizers/api"
)

// mergesHeader starts every merges.txt file.
const mergesHeader = "#version:"

// ReadFiles loads a vocab.json (token -> id object) and a merges.txt
// (header line, then one "A B" pair per line, rank = line order).
func ReadFiles(vocabPath, mergesPath string) (Vocab, []string, error) {
	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read vocab file %q", vocabPath)
	}
	var vocab Vocab
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		return nil, nil, errors.Wrapf(api.ErrVocabLoad, "vocab file %q: %v", vocabPath, err)
	}

	mergesFile, err := os.Open(mergesPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open merges file %q", mergesPath)
	}
	defer mergesFile.Close()

	var merges []string
	scanner := bufio.NewScanner(mergesFile)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			first = false
			if !strings.HasPrefix(line, mergesHeader) {
				return nil, nil, errors.Wrapf(api.ErrVocabLoad, "merges file %q is missing the %s header", mergesPath, mergesHeader)
			}
			continue
		}
		if line == "" {
			continue
		}
		merges = append(merges, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read merges file %q", mergesPath)
	}
	if first {
		return nil, nil, errors.Wrapf(api.ErrVocabLoad, "merges file %q is empty", mergesPath)
	}
	return vocab, merges, nil
}

// Save writes the model as vocab.json and merges.txt in dir, optionally
// prefixed by name. It returns the written paths.
func (b *BPE) Save(dir, name string) ([]string, error) {
	vocabName, mergesName := "vocab.json", "merges.txt"
	if name != "" {
		vocabName = fmt.Sprintf("%s-vocab.json", name)
		mergesName = fmt.Sprintf("%s-merges.txt", name)
	}
	vocabPath := filepath.Join(dir, vocabName)
	mergesPath := filepath.Join(dir, mergesName)

	vocabJSON, err := marshalOrderedVocab(b.vocabR)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(vocabPath, vocabJSON, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write vocab file %q", vocabPath)
	}

	var sb strings.Builder
	sb.WriteString(mergesHeader)
	sb.WriteString(" 0.2\n")
	for _, m := range b.mergeOrder {
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(mergesPath, []byte(sb.String()), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write merges file %q", mergesPath)
	}
	return []string{vocabPath, mergesPath}, nil
}

// marshalOrderedVocab serializes a reverse vocabulary as a JSON object
// whose keys appear in id order.
func marshalOrderedVocab(vocabR VocabR) ([]byte, error) {
	ids := make([]uint32, 0, len(vocabR))
	for id := range vocabR {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(vocabR[id])
		if err != nil {
			return nil, errors.Wrap(api.ErrSerialization, err.Error())
		}
		sb.Write(key)
		fmt.Fprintf(&sb, ":%d", id)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
