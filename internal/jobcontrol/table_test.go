package jobcontrol

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, jobs ...*Job) *Table {
	t.Helper()

	table := NewTable(slog.New(slog.DiscardHandler))
	for _, j := range jobs {
		table.Add(j)
	}

	return table
}

func namedJob(t *testing.T, command string, firstPid int) *Job {
	t.Helper()

	j := newTestJob(t, firstPid, running)
	j.command = command

	return j
}

func TestTableAddRemove(t *testing.T) {
	a := namedJob(t, "sleep 1", 100)
	b := namedJob(t, "sleep 2", 200)
	c := namedJob(t, "sleep 3", 300)

	table := newTestTable(t, a, b, c)

	assert.Equal(t, []int{1, 2, 3}, jobNumbers(table))

	t.Run("Test remove preserves order", func(t *testing.T) {
		table.Remove(b)

		assert.Equal(t, []*Job{a, c}, table.Jobs())
	})

	t.Run("Test remove unknown job", func(t *testing.T) {
		table.Remove(b)

		assert.Equal(t, 2, table.Len())
	})

	t.Run("Test next number follows highest", func(t *testing.T) {
		d := namedJob(t, "sleep 4", 400)
		table.Add(d)

		assert.Equal(t, 4, d.Number())
	})

	t.Run("Test duplicate add", func(t *testing.T) {
		table.Add(a)

		assert.Equal(t, 3, table.Len())
		assert.Equal(t, 1, a.Number())
	})

	t.Run("Test numbering restarts when empty", func(t *testing.T) {
		for _, j := range table.Jobs() {
			table.Remove(j)
		}

		e := namedJob(t, "sleep 5", 500)
		table.Add(e)

		assert.Equal(t, 1, e.Number())
	})
}

func TestTableGet(t *testing.T) {
	t.Run("Test empty table", func(t *testing.T) {
		table := newTestTable(t)

		for _, ref := range []string{"", "%%", "%1", "1", "%-"} {
			_, err := table.Get(ref)
			assert.ErrorIs(t, err, ErrNoCurrentJob, "ref %q", ref)
		}
	})

	a := namedJob(t, "vim notes.txt", 100)
	b := namedJob(t, "sleep 30", 200)
	c := namedJob(t, "make test", 300)
	table := newTestTable(t, a, b, c)

	scenarios := map[string]struct {
		ref     string
		want    *Job
		wantErr error
	}{
		"Default is current":  {ref: "", want: c},
		"Percent percent":     {ref: "%%", want: c},
		"Percent plus":        {ref: "%+", want: c},
		"Percent minus":       {ref: "%-", want: b},
		"Job number":          {ref: "%1", want: a},
		"Bare job number":     {ref: "2", want: b},
		"Command prefix":      {ref: "%vim", want: a},
		"Unknown number":      {ref: "%9", wantErr: ErrJobNotFound},
		"Unknown prefix":      {ref: "%emacs", wantErr: ErrJobNotFound},
		"Bare word":           {ref: "vim", wantErr: ErrJobNotFound},
		"Negative job number": {ref: "-1", wantErr: ErrJobNotFound},
	}

	for scenario, config := range scenarios {
		t.Run(scenario, func(t *testing.T) {
			got, err := table.Get(config.ref)

			if config.wantErr != nil {
				assert.ErrorIs(t, err, config.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Same(t, config.want, got)
		})
	}

	t.Run("Test markers", func(t *testing.T) {
		assert.Equal(t, byte(' '), table.Marker(a))
		assert.Equal(t, byte('-'), table.Marker(b))
		assert.Equal(t, byte('+'), table.Marker(c))
	})
}

func TestTableFindProcess(t *testing.T) {
	a := newTestJob(t, 100, running, running)
	b := newTestJob(t, 200, running)
	table := newTestTable(t, a, b)

	j, p := table.FindProcess(101)
	assert.Same(t, a, j)
	assert.Same(t, a.Processes()[1], p)

	j, p = table.FindProcess(200)
	assert.Same(t, b, j)
	assert.Same(t, b.Processes()[0], p)

	j, p = table.FindProcess(999)
	assert.Nil(t, j)
	assert.Nil(t, p)

	j, p = table.FindProcess(0)
	assert.Nil(t, j)
	assert.Nil(t, p)
}

func jobNumbers(table *Table) []int {
	var numbers []int
	for _, j := range table.Jobs() {
		numbers = append(numbers, j.Number())
	}

	return numbers
}
