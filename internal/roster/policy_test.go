package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathYieldsZeroPolicy(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, p.Elections)
	assert.Empty(t, p.Default.Major)
}

func TestLoadParsesPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  major: [SPD, CDU]
elections:
  election-1:
    major: [GRUENE]
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPD", "CDU"}, p.Default.Major)
	assert.Equal(t, []string{"GRUENE"}, p.Elections["election-1"].Major)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestExpandWithoutMajorsIncludesEveryAvailableTarget(t *testing.T) {
	p := &Policy{}
	got := p.Expand("e1", []string{"SPD", "CDU", "TINY"}, nil, nil)
	assert.Equal(t, []string{"SPD", "CDU", "TINY"}, got)
}

func TestExpandKeepsMajorsPlusSelectedAndNamed(t *testing.T) {
	p := &Policy{Default: electionPolicy{Major: []string{"SPD", "CDU"}}}
	available := []string{"SPD", "CDU", "TINY", "OTHER"}

	got := p.Expand("e1", available, []string{"TINY"}, []string{"OTHER"})

	assert.Equal(t, []string{"SPD", "CDU", "TINY", "OTHER"}, got)
}

func TestExpandDropsUnavailableAndDuplicates(t *testing.T) {
	p := &Policy{Default: electionPolicy{Major: []string{"SPD", "GONE"}}}

	got := p.Expand("e1", []string{"SPD", "CDU"}, []string{"SPD"}, []string{"SPD"})

	assert.Equal(t, []string{"SPD"}, got)
}

func TestExpandPrefersElectionSpecificMajors(t *testing.T) {
	p := &Policy{
		Default:   electionPolicy{Major: []string{"SPD"}},
		Elections: map[string]electionPolicy{"e2": {Major: []string{"CDU"}}},
	}
	available := []string{"SPD", "CDU"}

	assert.Equal(t, []string{"CDU"}, p.Expand("e2", available, nil, nil))
	assert.Equal(t, []string{"SPD"}, p.Expand("e1", available, nil, nil))
}

func TestExpandOnNilPolicy(t *testing.T) {
	var p *Policy
	assert.Equal(t, []string{"SPD"}, p.Expand("e1", []string{"SPD"}, nil, nil))
}
