package state

import (
	"testing"

	"cleanroom/internal/models"
)

func TestAddDatasetReplacesSameName(t *testing.T) {
	s := NewStore().Create()

	s.AddDataset(&models.Dataset{Name: "a.csv", Headers: []string{"X"}})
	s.AddDataset(&models.Dataset{Name: "b.csv", Headers: []string{"Y"}})
	s.AddDataset(&models.Dataset{Name: "a.csv", Headers: []string{"X", "Z"}})

	datasets := s.Datasets()
	if len(datasets) != 2 {
		t.Fatalf("datasets = %d, want 2 (re-upload replaces)", len(datasets))
	}
	if len(datasets[0].Headers) != 2 {
		t.Errorf("re-upload did not replace: %v", datasets[0].Headers)
	}
	if datasets[0].Name != "a.csv" || datasets[1].Name != "b.csv" {
		t.Errorf("upload order lost: %v, %v", datasets[0].Name, datasets[1].Name)
	}
}

func TestGroupLifecycle(t *testing.T) {
	s := NewStore().Create()
	if s.Analyzed() {
		t.Fatal("fresh session reports analyzed")
	}

	auto := []models.ColumnGroup{
		{ID: "cluster_0", Name: "Column Group 1", Columns: []string{"Country", "Ctry"}},
	}
	s.SetGroups(auto)
	if !s.Analyzed() {
		t.Fatal("session not analyzed after SetGroups")
	}

	if err := s.UpdateGroup("cluster_0", []string{"Country"}, "use ISO names"); err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if err := s.UpdateGroup("nope", nil, ""); err == nil {
		t.Fatal("UpdateGroup succeeded for unknown group")
	}

	custom := s.AddCustomGroup([]string{"Ctry"})
	if custom.ID != "custom_cluster_0" || custom.Name != "Custom Column Group 1" {
		t.Errorf("custom group = %+v", custom)
	}
	if !custom.Custom {
		t.Error("custom group not flagged")
	}

	groups := s.Groups()
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want auto plus custom", len(groups))
	}
	if len(groups[0].Columns) != 1 || groups[0].Instructions != "use ISO names" {
		t.Errorf("updated group = %+v", groups[0])
	}

	s.ResetGroups()
	groups = s.Groups()
	if len(groups) != 1 {
		t.Fatalf("groups after reset = %d, want the automatic set", len(groups))
	}
	if len(groups[0].Columns) != 2 {
		t.Errorf("reset did not restore member columns: %v", groups[0].Columns)
	}

	// Custom numbering restarts after reset.
	custom = s.AddCustomGroup([]string{"Ctry"})
	if custom.ID != "custom_cluster_0" {
		t.Errorf("custom ID after reset = %q, want custom_cluster_0", custom.ID)
	}
}

func TestMappingLifecycleFlags(t *testing.T) {
	s := NewStore().Create()
	if s.MappingsGenerated() || s.Finished() {
		t.Fatal("fresh session has workflow flags set")
	}

	s.SetMappings(map[string]*models.Mapping{
		"g - c": {ColumnID: "g - c", Status: models.StatusProposed},
	})
	if !s.MappingsGenerated() {
		t.Fatal("generated flag not set")
	}
	if s.Iteration() != 0 {
		t.Errorf("iteration = %d, want 0", s.Iteration())
	}

	if got := s.BumpIteration(); got != 1 {
		t.Errorf("BumpIteration = %d, want 1", got)
	}

	if _, ok := s.Mapping("g - c"); !ok {
		t.Error("mapping lookup by column ID failed")
	}
	if _, ok := s.Mapping("missing"); ok {
		t.Error("lookup for unknown column ID succeeded")
	}

	s.MarkFinished()
	if !s.Finished() {
		t.Error("finished flag not set")
	}

	// A fresh generation clears the workflow progress.
	s.SetMappings(map[string]*models.Mapping{})
	if s.Finished() || s.Iteration() != 0 {
		t.Error("SetMappings did not reset iteration and finished state")
	}
}

func TestStoreSessions(t *testing.T) {
	st := NewStore()

	created := st.Create()
	if created.ID == "" {
		t.Fatal("session without ID")
	}
	got, ok := st.Get(created.ID)
	if !ok || got != created {
		t.Fatal("Get did not return the created session")
	}

	// Unknown or empty IDs resolve to the shared default session.
	def1 := st.GetOrDefault("")
	def2 := st.GetOrDefault("unknown-id")
	if def1 != def2 {
		t.Error("default session not shared")
	}
	if st.GetOrDefault(created.ID) != created {
		t.Error("known ID resolved to default session")
	}

	// Reset swaps in a fresh session under the same key.
	def1.MarkFinished()
	fresh := st.Reset("")
	if fresh == def1 {
		t.Error("Reset returned the old session")
	}
	if st.GetOrDefault("").Finished() {
		t.Error("Reset did not replace the default session")
	}
}
