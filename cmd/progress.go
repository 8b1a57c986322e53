package cmd

import (
	"fmt"
	"sync"

	"github.com/gosuri/uiprogress"
)

// progressBars shows one bar per relation.
type progressBars struct {
	mu   sync.Mutex
	bars map[string]*uiprogress.Bar
}

func newProgressBars() *progressBars {
	uiprogress.Start()
	return &progressBars{bars: make(map[string]*uiprogress.Bar)}
}

func (p *progressBars) Start(relation string, total int) {
	if total <= 0 {
		total = 1
	}
	bar := uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-20s", relation)
	})
	p.mu.Lock()
	p.bars[relation] = bar
	p.mu.Unlock()
}

func (p *progressBars) Add(relation string, rows int) {
	p.mu.Lock()
	bar := p.bars[relation]
	p.mu.Unlock()
	if bar == nil {
		return
	}
	n := bar.Current() + rows
	if n > bar.Total {
		n = bar.Total
	}
	bar.Set(n)
}

func (p *progressBars) Stop() { uiprogress.Stop() }
