package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"document-portal/models"
)

const embedDims = 256

// wordEmbedder is a deterministic bag-of-words embedder: every token
// increments one hashed dimension, so texts sharing words score higher.
type wordEmbedder struct {
	calls atomic.Int64
	texts atomic.Int64
	err   error
}

func (e *wordEmbedder) Model() string { return "bag-of-words" }

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	e.texts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func bagOfWords(text string) []float32 {
	v := make([]float32, embedDims)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		v[h.Sum32()%embedDims]++
	}
	// keep empty texts off the zero vector
	v[0] += 0.01
	return v
}

// scriptedGenerator records every prompt it receives and answers with fn.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts [][]models.ChatMessage
	fn      func(messages []models.ChatMessage) (string, error)
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, messages []models.ChatMessage) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, append([]models.ChatMessage(nil), messages...))
	g.mu.Unlock()
	return g.fn(messages)
}

func (g *scriptedGenerator) calls() [][]models.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]models.ChatMessage(nil), g.prompts...)
}

var errGeneration = errors.New("upstream unavailable")

// sentence returns exactly n runes of filler words ending in ". ", or in "."
// when last is set. fact, if given, is embedded at the start.
func sentence(n int, fact string, last bool) string {
	filler := []string{"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit", "sed", "tempor"}
	end := ". "
	if last {
		end = "."
	}
	var sb strings.Builder
	if fact != "" {
		sb.WriteString(fact)
		sb.WriteString(" ")
	}
	for i := 0; sb.Len() < n-len(end); i++ {
		sb.WriteString(filler[i%len(filler)])
		sb.WriteString(" ")
	}
	body := strings.TrimRight(sb.String()[:n-len(end)], " ")
	body += strings.Repeat("x", n-len(end)-len(body))
	return body + end
}

const vaultFact = "the vault code is 4417"

// twentyFiveHundred is a 2500-character text that splits, at size 1000 and
// overlap 200, into four chunks whose neighbours share one 195-character
// sentence. The vault fact sits in a sentence only the third chunk holds.
func twentyFiveHundred() string {
	sizes := []int{250, 250, 250, 195, 250, 250, 195, 250, 250, 195, 165}
	var sb strings.Builder
	for i, n := range sizes {
		fact := ""
		if i == 8 {
			fact = vaultFact
		}
		sb.WriteString(sentence(n, fact, i == len(sizes)-1))
	}
	return sb.String()
}

// harbourReport is 2500 characters of ordinary prose in three paragraphs with
// sentences of uneven length. At size 1000 and overlap 200 the first
// paragraph needs two chunks and the others fit one each.
func harbourReport() string {
	paragraphs := []string{
		"The harbour office opened at dawn. " +
			"Clerks sorted the overnight manifests, checking each container number against the customs register before the first cranes began to move. " +
			"Most mornings passed without incident. " +
			"On the third Tuesday of the month, however, the inspector arrived early and asked for the ledgers from the previous quarter, which had been archived in the basement after the flood. " +
			"Nobody could remember who held the key. " +
			"A junior clerk eventually found it taped beneath the drawer of the old reception desk, next to a faded photograph of the original staff. " +
			"The ledgers were damp but legible. " +
			"Pages near the spine had stuck together, so the inspector worked slowly, lifting each sheet with a paper knife and photographing it before moving on. " +
			"By noon she had flagged eleven entries. " +
			"Three of them concerned a shipment of machine parts that had been declared twice under different tariff codes. " +
			"The rest were minor: missing signatures, a transposed date, an invoice stapled to the wrong folder. " +
			"She wrote everything down in a small notebook with a blue cover.",
		"After lunch the harbour master joined her. " +
			"He was a tall man who spoke quietly and rarely sat down. " +
			"Together they walked the length of the east quay, counting bollards and comparing the berth numbers painted on the concrete with those recorded on the plans. " +
			"Two berths had been renumbered years earlier without the plans being updated. " +
			"That explained at least one of the discrepancies. " +
			"The other two remained a mystery until late afternoon, when a retired stevedore stopped by to collect his pension forms. " +
			"He remembered the machine parts clearly. " +
			"They had been unloaded in heavy rain, he said, and the first tally sheet had blown into the water. " +
			"A second sheet was written from memory the next day by someone who did not know the correct codes.",
		"The inspector thanked him and added a note. " +
			"Before leaving she asked where the archived safe was kept. " +
			"The harbour master pointed to a grey cabinet behind the stairs and told her the vault code is 4417, unchanged since the office was built. " +
			"She opened it, found the original bills of lading, and confirmed that the second declaration should be withdrawn. " +
			"The report she filed that evening was short. " +
			"It recommended that the plans be corrected, that tally sheets be kept in sealed pouches during bad weather, and that the basement archive be moved somewhere drier. " +
			"The cranes started on time, the manifests were sorted, and the ledgers went back into their boxes on a higher shelf.",
	}
	return strings.Join(paragraphs, "\n\n")
}
