package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/swarm/internal/utils"
)

type Job struct {
	ID          int
	Name        string
	Status      Status
	Message     string
	Downloaded  int64
	Total       int64
	Attempts    int64
	Failures    int64
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	JobName string
	Error   error
	Time    time.Time
}

// Manager tracks download jobs and redraws their state on a ticker when writing to a terminal.
type Manager struct {
	out         io.Writer
	jobs        map[int]*Job
	mutex       sync.RWMutex
	jobCount    int
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	displayWg   sync.WaitGroup
	stopOnce    sync.Once
	interactive bool
}

func NewManager(out io.Writer) *Manager {
	return &Manager{
		out:         out,
		jobs:        make(map[int]*Job),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		interactive: isTerminal(out),
	}
}

// Interactive reports whether the manager redraws in place; callers move logs elsewhere when it does.
func (m *Manager) Interactive() bool {
	return m.interactive
}

func (m *Manager) Register(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	now := time.Now()
	m.jobs[m.jobCount] = &Job{
		ID:          m.jobCount,
		Name:        name,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return m.jobCount
}

func (m *Manager) update(id int, fn func(j *Job)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if j, ok := m.jobs[id]; ok && !j.Complete {
		fn(j)
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(j *Job) { j.Message = message })
}

func (m *Manager) SetStatus(id int, status Status) {
	m.update(id, func(j *Job) { j.Status = status })
}

func (m *Manager) UpdateProgress(id int, downloaded, total int64) {
	m.update(id, func(j *Job) {
		j.Status = StatusDownloading
		j.Downloaded = downloaded
		j.Total = total
	})
}

func (m *Manager) UpdateStats(id int, attempts, failures int64) {
	m.update(id, func(j *Job) {
		j.Attempts = attempts
		j.Failures = failures
	})
}

func (m *Manager) Job(id int) (Job, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(j *Job) {
		if message == "" {
			message = fmt.Sprintf("Completed %s", j.Name)
		}
		j.Message = message
		j.Status = StatusSuccess
		j.Complete = true
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.update(id, func(j *Job) {
		j.Status = StatusError
		j.Error = err
		j.Message = fmt.Sprintf("Failed %s", j.Name)
		j.Complete = true
		m.errors = append(m.errors, ErrorReport{JobName: j.Name, Error: err, Time: time.Now()})
	})
}

func (m *Manager) Counts() (succeeded, failed int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, j := range m.jobs {
		switch j.Status {
		case StatusSuccess:
			succeeded++
		case StatusError:
			failed++
		}
	}
	return succeeded, failed
}

func statusIndicator(status Status) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusDownloading:
		return infoStyle.Render(StyleSymbols["active"])
	case StatusSizing:
		return pendingStyle.Render(StyleSymbols["dot"])
	default:
		return pendingStyle.Render(StyleSymbols["pending"])
	}
}

func styleMessage(status Status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

// Render lays out every job in registration order: running jobs first, then
// waiting ones, then finished ones, trimmed to fit height lines.
func (m *Manager) Render(width, height int) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]int, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	var active, pending, done []*Job
	for _, id := range ids {
		j := m.jobs[id]
		switch {
		case j.Complete:
			done = append(done, j)
		case j.Status == StatusPending:
			pending = append(pending, j)
		default:
			active = append(active, j)
		}
	}

	indent := strings.Repeat(" ", 2)
	var lines []string
	for _, j := range active {
		elapsed := time.Since(j.StartTime).Round(time.Second)
		message := j.Message
		if message == "" {
			message = j.Name
		}
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(j.Status), debugStyle.Render(elapsed.String()), styleMessage(j.Status, truncate(message, width-16))))
		if j.Status == StatusDownloading && j.Total > 0 {
			stats := fmt.Sprintf("%s %s %s/%s %s %s", ProgressBar(j.Downloaded, j.Total, 30), StyleSymbols["bullet"],
				utils.FormatBytes(uint64(j.Downloaded)), utils.FormatBytes(uint64(j.Total)),
				StyleSymbols["bullet"], FormatSpeed(j.Downloaded, time.Since(j.StartTime)))
			if j.Failures > 0 {
				stats += fmt.Sprintf(" %s %d retries", StyleSymbols["bullet"], j.Failures)
			}
			lines = append(lines, indent+indent+indent+streamStyle.Render(stats))
		}
	}
	for _, j := range pending {
		lines = append(lines, fmt.Sprintf("%s%s %s", indent, statusIndicator(j.Status), pendingStyle.Render(truncate("Waiting... "+j.Name, width-6))))
	}
	// finished jobs give way to running ones when the screen is short
	room := max(height-3-len(lines), 0)
	if len(done) > room {
		hidden := len(done) - room
		if room > 0 {
			hidden++
			room--
		}
		lines = append(lines, indent+infoStyle.Render(fmt.Sprintf("%d jobs finished ...", hidden)))
		done = done[len(done)-room:]
	}
	for _, j := range done {
		total := j.LastUpdated.Sub(j.StartTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(j.Status), debugStyle.Render(total.String()), styleMessage(j.Status, truncate(j.Message, width-16))))
	}
	return lines
}

func (m *Manager) redraw() {
	width, height := terminalSize(m.out)
	lines := m.Render(width, height)
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

// StartDisplay redraws on a ticker for terminals; other writers only get the final summary.
func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		if !m.interactive {
			<-m.doneCh
			m.ShowSummary()
			return
		}
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				m.redraw()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	m.stopOnce.Do(func() { close(m.doneCh) })
	m.displayWg.Wait()
}

func (m *Manager) ShowSummary() {
	succeeded, failed := m.Counts()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	indent := strings.Repeat(" ", 2)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, indent+success2Style.Render(fmt.Sprintf("Completed %d of %d", succeeded, len(m.jobs))))
	if failed > 0 {
		fmt.Fprintln(m.out, indent+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(m.jobs))))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, indent+errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Fprintf(m.out, "%s%s %s %s\n", indent+indent,
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(report.JobName))
			fmt.Fprintf(m.out, "%s%s\n", indent+indent+indent, errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
		}
	}
	fmt.Fprintln(m.out)
}
