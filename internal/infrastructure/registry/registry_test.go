package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
)

func newTestRegistry(t *testing.T) *FileRegistry {
	t.Helper()
	return New(t.TempDir(), hclog.NewNullLogger())
}

func record(id, version string, state domain.PluginState, deps ...domain.Dependency) domain.PluginRecord {
	return domain.PluginRecord{
		Manifest: domain.PluginManifest{
			ID:           id,
			Version:      version,
			EntryPoint:   "main.py",
			Dependencies: deps,
		},
		State:            state,
		InstalledVersion: version,
	}
}

func writeRecords(t *testing.T, r *FileRegistry, records ...domain.PluginRecord) {
	t.Helper()
	stage, err := r.StageRecords(records)
	require.NoError(t, err)
	require.NoError(t, r.CommitRecords(stage))
}

func TestFileRegistry_LoadSeedsEmptyWhenMissing(t *testing.T) {
	r := newTestRegistry(t)
	records, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.FileExists(t, r.RecordsPath(), "missing records are seeded on first read")
}

func TestFileRegistry_LoadRestoresFromExample(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, hclog.NewNullLogger())

	example := `{"plugins": [{"manifest": {"id": "weather", "version": "1.0.0", "entry_point": "main.py"}, "state": "disabled", "installed_version": "1.0.0", "last_applied_at": "0001-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugins.json.example"), []byte(example), 0o644))
	// Corrupt canonical records trigger the restore path.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugins.json"), []byte("{broken"), 0o644))

	records, err := r.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "weather", records[0].Manifest.ID)
	assert.Equal(t, domain.StateDisabled, records[0].State)
}

func TestFileRegistry_GetNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrPluginNotFound)
}

func TestFileRegistry_CheckInstall(t *testing.T) {
	tests := []struct {
		name      string
		installed []domain.PluginRecord
		pkg       ports.PluginPackage
		check     func(*testing.T, error)
	}{
		{
			name: "clean install",
			pkg: ports.PluginPackage{
				Manifest: domain.PluginManifest{ID: "weather", Version: "1.0.0", EntryPoint: "main.py"},
				Files:    map[string][]byte{"main.py": []byte("print()")},
			},
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:      "duplicate id",
			installed: []domain.PluginRecord{record("weather", "1.0.0", domain.StateDisabled)},
			pkg: ports.PluginPackage{
				Manifest: domain.PluginManifest{ID: "weather", Version: "2.0.0", EntryPoint: "main.py"},
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrDuplicatePlugin) },
		},
		{
			name: "bad manifest",
			pkg: ports.PluginPackage{
				Manifest: domain.PluginManifest{ID: "weather", Version: "not-semver", EntryPoint: "main.py"},
			},
			check: func(t *testing.T, err error) {
				var bad *domain.BadManifestError
				assert.ErrorAs(t, err, &bad)
			},
		},
		{
			name: "missing dependency",
			pkg: ports.PluginPackage{
				Manifest: domain.PluginManifest{
					ID: "weather", Version: "1.0.0", EntryPoint: "main.py",
					Dependencies: []domain.Dependency{{ID: "base-widgets"}},
				},
			},
			check: func(t *testing.T, err error) {
				var missing *domain.MissingDependencyError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, "base-widgets", missing.Dependency)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			if len(tt.installed) > 0 {
				writeRecords(t, r, tt.installed...)
			}
			tt.check(t, r.CheckInstall(tt.pkg))
		})
	}
}

func TestFileRegistry_CheckUpdate(t *testing.T) {
	pkg := func(id, version string, deps ...domain.Dependency) ports.PluginPackage {
		return ports.PluginPackage{
			Manifest: domain.PluginManifest{
				ID:           id,
				Version:      version,
				EntryPoint:   "main.py",
				Dependencies: deps,
			},
			Files: map[string][]byte{"main.py": []byte("entry")},
		}
	}

	tests := []struct {
		name      string
		installed []domain.PluginRecord
		pkg       ports.PluginPackage
		check     func(*testing.T, error)
	}{
		{
			name:      "newer version accepted",
			installed: []domain.PluginRecord{record("weather", "1.0.0", domain.StateEnabled)},
			pkg:       pkg("weather", "1.1.0"),
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:      "not installed",
			installed: nil,
			pkg:       pkg("weather", "1.1.0"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrPluginNotFound)
			},
		},
		{
			name:      "same version refused",
			installed: []domain.PluginRecord{record("weather", "1.0.0", domain.StateEnabled)},
			pkg:       pkg("weather", "1.0.0"),
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "not newer")
			},
		},
		{
			name:      "downgrade refused",
			installed: []domain.PluginRecord{record("weather", "1.1.0", domain.StateEnabled)},
			pkg:       pkg("weather", "1.0.0"),
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "not newer")
			},
		},
		{
			name: "new dependency must be installed",
			installed: []domain.PluginRecord{
				record("weather", "1.0.0", domain.StateEnabled),
			},
			pkg: pkg("weather", "1.1.0", domain.Dependency{ID: "base-widgets"}),
			check: func(t *testing.T, err error) {
				var merr *domain.MissingDependencyError
				require.ErrorAs(t, err, &merr)
				assert.Equal(t, "base-widgets", merr.Dependency)
			},
		},
		{
			name: "dependent pinned to the current major blocks a major bump",
			installed: []domain.PluginRecord{
				record("weather", "1.0.0", domain.StateEnabled),
				record("radar", "1.0.0", domain.StateEnabled, domain.Dependency{ID: "weather", MinVersion: "1.0.0"}),
			},
			pkg: pkg("weather", "2.0.0"),
			check: func(t *testing.T, err error) {
				var verr *domain.VersionMismatchError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "radar", verr.Plugin)
				assert.Equal(t, "2.0.0", verr.Found)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry(t)
			if len(tc.installed) > 0 {
				writeRecords(t, r, tc.installed...)
			}
			tc.check(t, r.CheckUpdate(tc.pkg))
		})
	}
}

func TestFileRegistry_StashRestoreDrop(t *testing.T) {
	r := newTestRegistry(t)
	oldPkg := ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "weather", Version: "1.0.0", EntryPoint: "main.py"},
		Files:    map[string][]byte{"main.py": []byte("v1")},
	}
	newPkg := ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "weather", Version: "1.1.0", EntryPoint: "main.py"},
		Files:    map[string][]byte{"main.py": []byte("v2")},
	}
	require.NoError(t, r.PlaceFiles(oldPkg))

	require.NoError(t, r.StashFiles("weather"))
	assert.NoDirExists(t, r.PluginDir("weather"))
	require.NoError(t, r.PlaceFiles(newPkg))

	// Rollback path: the stash replaces whatever the update placed.
	require.NoError(t, r.RestoreFiles("weather"))
	data, err := os.ReadFile(filepath.Join(r.PluginDir("weather"), "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	// Commit path: the stash is discarded, the new payload stays.
	require.NoError(t, r.StashFiles("weather"))
	require.NoError(t, r.PlaceFiles(newPkg))
	r.DropStash("weather")
	assert.NoDirExists(t, r.PluginDir("weather")+".prev")
	data, err = os.ReadFile(filepath.Join(r.PluginDir("weather"), "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestFileRegistry_CheckInstall_FileCollision(t *testing.T) {
	r := newTestRegistry(t)
	writeRecords(t, r, record("weather", "1.0.0", domain.StateDisabled))
	require.NoError(t, r.PlaceFiles(ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "weather", Version: "1.0.0", EntryPoint: "main.py"},
		Files:    map[string][]byte{"boards/radar.py": []byte("a")},
	}))

	err := r.CheckInstall(ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "other", Version: "1.0.0", EntryPoint: "main.py"},
		Files:    map[string][]byte{"boards/radar.py": []byte("b")},
	})
	var collision *domain.FileCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "weather", collision.Owner)
	assert.Equal(t, "boards/radar.py", collision.Path)
}

func TestFileRegistry_PlaceFilesRejectsEscape(t *testing.T) {
	r := newTestRegistry(t)
	err := r.PlaceFiles(ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "evil", Version: "1.0.0", EntryPoint: "main.py"},
		Files:    map[string][]byte{"../../etc/cron.d/boom": []byte("x")},
	})
	assert.Error(t, err)
}

func TestFileRegistry_PlaceAndRemoveFiles(t *testing.T) {
	r := newTestRegistry(t)
	pkg := ports.PluginPackage{
		Manifest: domain.PluginManifest{ID: "weather", Version: "1.0.0", EntryPoint: "main.py"},
		Files: map[string][]byte{
			"main.py":         []byte("entry"),
			"boards/radar.py": []byte("board"),
		},
	}
	require.NoError(t, r.PlaceFiles(pkg))
	assert.FileExists(t, filepath.Join(r.PluginDir("weather"), "main.py"))
	assert.FileExists(t, filepath.Join(r.PluginDir("weather"), "boards", "radar.py"))

	require.NoError(t, r.RemoveFiles("weather"))
	assert.NoDirExists(t, r.PluginDir("weather"))
}

func TestFileRegistry_PlanEnable(t *testing.T) {
	t.Run("dependencies come first", func(t *testing.T) {
		r := newTestRegistry(t)
		writeRecords(t, r,
			record("c", "1.0.0", domain.StateDisabled),
			record("b", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "c", MinVersion: "1.0.0"}),
			record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "b", MinVersion: "1.0.0"}),
		)

		plan, err := r.PlanEnable("a")
		require.NoError(t, err)
		assert.Equal(t, "a", plan.Target)
		assert.Equal(t, []string{"c", "b", "a"}, plan.Order)
	})

	t.Run("diamond enables each plugin once", func(t *testing.T) {
		r := newTestRegistry(t)
		writeRecords(t, r,
			record("d", "1.0.0", domain.StateDisabled),
			record("b", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "d"}),
			record("c", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "d"}),
			record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "b"}, domain.Dependency{ID: "c"}),
		)

		plan, err := r.PlanEnable("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "b", "c", "a"}, plan.Order)
	})

	t.Run("unknown target", func(t *testing.T) {
		r := newTestRegistry(t)
		_, err := r.PlanEnable("ghost")
		assert.ErrorIs(t, err, domain.ErrPluginNotFound)
	})

	t.Run("missing dependency", func(t *testing.T) {
		r := newTestRegistry(t)
		writeRecords(t, r, record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "gone"}))

		_, err := r.PlanEnable("a")
		var missing *domain.MissingDependencyError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "gone", missing.Dependency)
	})

	t.Run("version mismatch", func(t *testing.T) {
		r := newTestRegistry(t)
		writeRecords(t, r,
			record("b", "1.1.0", domain.StateDisabled),
			record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "b", MinVersion: "1.2.0"}),
		)

		_, err := r.PlanEnable("a")
		var mismatch *domain.VersionMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "1.2.0", mismatch.Required)
		assert.Equal(t, "1.1.0", mismatch.Found)
	})

	t.Run("direct cycle reported with chain", func(t *testing.T) {
		r := newTestRegistry(t)
		writeRecords(t, r,
			record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "b"}),
			record("b", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "a"}),
		)

		_, err := r.PlanEnable("a")
		var cyc *domain.CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"a", "b", "a"}, cyc.Chain)
	})

	t.Run("self cycle", func(t *testing.T) {
		r := newTestRegistry(t)
		// A self dependency cannot pass manifest validation but a
		// hand-edited plugins.json can still contain one.
		writeRecords(t, r, record("a", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "a"}))

		_, err := r.PlanEnable("a")
		var cyc *domain.CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"a", "a"}, cyc.Chain)
	})
}

func TestFileRegistry_PlanDisableAndUninstall(t *testing.T) {
	r := newTestRegistry(t)
	writeRecords(t, r,
		record("base", "1.0.0", domain.StateEnabled),
		record("widget", "1.0.0", domain.StateEnabled, domain.Dependency{ID: "base"}),
		record("idle", "1.0.0", domain.StateDisabled, domain.Dependency{ID: "base"}),
	)

	t.Run("refused while enabled dependents exist", func(t *testing.T) {
		_, err := r.PlanDisable("base")
		var deps *domain.HasDependentsError
		require.ErrorAs(t, err, &deps)
		assert.Equal(t, []string{"widget"}, deps.Dependents, "disabled dependents do not block")

		err = r.CheckUninstall("base")
		assert.ErrorAs(t, err, &deps)
	})

	t.Run("allowed for leaf plugin", func(t *testing.T) {
		plan, err := r.PlanDisable("widget")
		require.NoError(t, err)
		assert.Equal(t, "widget", plan.Target)
		assert.NoError(t, r.CheckUninstall("widget"))
	})

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := r.PlanDisable("ghost")
		assert.ErrorIs(t, err, domain.ErrPluginNotFound)
	})
}

func TestFileRegistry_StageCommitDiscard(t *testing.T) {
	r := newTestRegistry(t)
	writeRecords(t, r, record("a", "1.0.0", domain.StateDisabled))

	records, err := r.List()
	require.NoError(t, err)
	records[0].State = domain.StateEnabled

	stage, err := r.StageRecords(records)
	require.NoError(t, err)

	// Staged state is invisible until commit.
	current, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, domain.StateDisabled, current[0].State)

	require.NoError(t, r.CommitRecords(stage))
	committed, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, domain.StateEnabled, committed[0].State)
	assert.NoFileExists(t, stage.Path)
}

func TestFileRegistry_DiscardLeavesCanonical(t *testing.T) {
	r := newTestRegistry(t)
	writeRecords(t, r, record("a", "1.0.0", domain.StateDisabled))

	records, _ := r.List()
	records[0].State = domain.StateEnabled
	stage, err := r.StageRecords(records)
	require.NoError(t, err)

	r.DiscardRecords(stage)
	assert.NoFileExists(t, stage.Path)

	current, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, domain.StateDisabled, current[0].State)
}
