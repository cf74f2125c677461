package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFixation     BookmarkType = "fixation"
	BookmarkExtinction   BookmarkType = "extinction"
	BookmarkFitnessShift BookmarkType = "fitness_shift"
	BookmarkStable       BookmarkType = "stable"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Generation  float64      `csv:"generation" json:"generation"`
	Description string       `csv:"description" json:"description"`
}

// Log writes the bookmark to logger.
func (b Bookmark) Log(logger *slog.Logger) {
	logger.Info("bookmark",
		"type", string(b.Type),
		"generation", b.Generation,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []Sample
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	fixated            bool
	present            []bool // types seen alive
	stableWindowsCount int    // consecutive samples with stable mean fitness
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stability detection
	}
	return &BookmarkDetector{
		history:     make([]Sample, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest sample and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(s Sample) []Bookmark {
	var bookmarks []Bookmark

	// Extinction: a type present before has no agents left
	bookmarks = append(bookmarks, bd.checkExtinction(s)...)

	// Fixation: a single strategy remains
	if b := bd.checkFixation(s); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Fitness shift: mean fitness moved by more than 3 rolling std
		if b := bd.checkFitnessShift(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable: mean fitness within 1% over 5+ samples
		if b := bd.checkStable(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(s)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(s Sample) {
	bd.history[bd.historyIdx] = s
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []Sample {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkExtinction(s Sample) []Bookmark {
	if s.Types == nil {
		return nil
	}
	if len(bd.present) != len(s.Types) {
		bd.present = make([]bool, len(s.Types))
	}
	var out []Bookmark
	for t, c := range s.Types {
		switch {
		case c > 0:
			bd.present[t] = true
		case bd.present[t]:
			bd.present[t] = false
			out = append(out, Bookmark{
				Type:        BookmarkExtinction,
				Generation:  s.Generation,
				Description: fmt.Sprintf("Type %d went extinct", t),
			})
		}
	}
	return out
}

func (bd *BookmarkDetector) checkFixation(s Sample) *Bookmark {
	fixed := -1
	if s.Types != nil {
		alive := 0
		for t, c := range s.Types {
			if c > 0 {
				alive++
				fixed = t
			}
		}
		if alive != 1 {
			fixed = -1
		}
	} else if s.TraitStd == 0 {
		fixed = 0
	}

	if fixed < 0 {
		bd.fixated = false
		return nil
	}
	if bd.fixated {
		return nil
	}
	bd.fixated = true
	desc := fmt.Sprintf("Population fixated at trait %.4g", s.TraitMean)
	if s.Types != nil {
		desc = fmt.Sprintf("Type %d fixated", fixed)
	}
	return &Bookmark{Type: BookmarkFixation, Generation: s.Generation, Description: desc}
}

func (bd *BookmarkDetector) checkFitnessShift(s Sample) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var sum, sq float64
	for _, h := range history {
		sum += h.FitnessMean
	}
	mean := sum / float64(len(history))
	for _, h := range history {
		d := h.FitnessMean - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(history)))
	if std == 0 {
		return nil
	}

	if math.Abs(s.FitnessMean-mean) > 3*std && math.Abs(s.FitnessMean-mean) > 0.01*math.Abs(mean) {
		return &Bookmark{
			Type:        BookmarkFitnessShift,
			Generation:  s.Generation,
			Description: fmt.Sprintf("Mean fitness %.4g is %.1f std from rolling average %.4g", s.FitnessMean, math.Abs(s.FitnessMean-mean)/std, mean),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStable(s Sample) *Bookmark {
	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}
	last := history[len(history)-4:]
	if bd.historyFull {
		last = make([]Sample, 0, 4)
		for k := 4; k >= 1; k-- {
			last = append(last, bd.history[(bd.historyIdx-k+bd.historySize)%bd.historySize])
		}
	}

	stable := true
	for _, h := range last {
		if math.Abs(h.FitnessMean-s.FitnessMean) > 0.01*math.Max(1e-12, math.Abs(s.FitnessMean)) {
			stable = false
			break
		}
	}
	if stable {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 samples
		return &Bookmark{
			Type:        BookmarkStable,
			Generation:  s.Generation,
			Description: fmt.Sprintf("Mean fitness stable at %.4g over 5+ samples", s.FitnessMean),
		}
	}
	return nil
}
