// ABOUTME: Tests for the sqlite-backed datastore: version numbering, atomic completion, and failure.
// ABOUTME: Each test opens a fresh database file in a temp directory.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sitegen.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProject(t *testing.T, s *Store, credits int) (User, Project) {
	t.Helper()
	ctx := context.Background()
	u, _, err := s.CreateUser(ctx, "ada", credits)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := s.CreateProject(ctx, u.ID, "Crumb & Co")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return u, p
}

func sampleFiles() []File {
	return []File{
		{Path: "src/components/Hero.tsx", Content: "hero", Type: "component", Section: "hero"},
		{Path: "src/app/page.tsx", Content: "page", Type: "page"},
		{Path: "src/app/globals.css", Content: "body{}", Type: "style"},
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("got %v, want ErrUnknownDriver", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	got := pg.rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`)
	if got != `UPDATE t SET a = $1, b = $2 WHERE id = $3` {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if q := `SELECT ?`; lite.rebind(q) != q {
		t.Error("sqlite query should be unchanged")
	}
}

func TestUsers_TokenLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, token, err := s.CreateUser(ctx, "grace", 3)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	got, err := s.UserByToken(ctx, token)
	if err != nil {
		t.Fatalf("user by token: %v", err)
	}
	if got.ID != u.ID || got.Credits != 3 {
		t.Errorf("user = %+v", got)
	}
	if _, err := s.UserByToken(ctx, "sg_wrong"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong token: got %v, want ErrNotFound", err)
	}

	credits, err := s.AddCredits(ctx, u.ID, 5)
	if err != nil || credits != 8 {
		t.Errorf("AddCredits = %d, %v", credits, err)
	}
}

func TestCreateVersion_Monotonic(t *testing.T) {
	s := openTestStore(t)
	_, p := seedProject(t, s, 1)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		v, err := s.CreateVersion(ctx, p.ID, TriggerGeneration)
		if err != nil {
			t.Fatalf("create version: %v", err)
		}
		if v.Number != want || v.Status != VersionGenerating {
			t.Errorf("version = %+v, want number %d generating", v, want)
		}
	}

	proj, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if proj.Status != ProjectGenerating {
		t.Errorf("project status = %s", proj.Status)
	}
}

func TestCreateVersion_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	s := openTestStore(t)
	_, p := seedProject(t, s, 1)

	const n = 8
	var wg sync.WaitGroup
	numbers := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.CreateVersion(context.Background(), p.ID, TriggerEdit)
			numbers[i], errs[i] = v.Number, err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("create version: %v", err)
		}
	}
	sort.Ints(numbers)
	for i, got := range numbers {
		if got != i+1 {
			t.Fatalf("numbers = %v, want 1..%d", numbers, n)
		}
	}
}

func TestCompleteGeneration_CommitsEverything(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 2)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)

	res, err := s.CompleteGeneration(ctx, CompleteParams{
		VersionID: v.ID,
		ProjectID: p.ID,
		UserID:    u.ID,
		Files:     sampleFiles(),
		Config:    []byte(`{"businessName":"Crumb & Co"}`),
		Elapsed:   1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.AlreadyComplete || !res.Charged {
		t.Errorf("result = %+v", res)
	}

	files, err := s.VersionFiles(ctx, v.ID)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 3 || files[0].Path != "src/components/Hero.tsx" || files[2].Type != "style" {
		t.Errorf("files = %+v", files)
	}
	if files[0].Section != "hero" || files[1].Section != "" {
		t.Errorf("sections = %q, %q", files[0].Section, files[1].Section)
	}

	got, _ := s.GetVersion(ctx, v.ID)
	if got.Status != VersionComplete || got.ElapsedMS != 1500 || got.CompletedAt == nil {
		t.Errorf("version = %+v", got)
	}
	proj, _ := s.GetProject(ctx, p.ID)
	if proj.Status != ProjectGenerated || proj.GeneratedAt == nil || string(proj.Config) != `{"businessName":"Crumb & Co"}` {
		t.Errorf("project = %+v", proj)
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Credits != 1 {
		t.Errorf("credits = %d, want 1", user.Credits)
	}
}

func TestCompleteGeneration_RetryIsNoop(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 5)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)
	params := CompleteParams{VersionID: v.ID, ProjectID: p.ID, UserID: u.ID, Files: sampleFiles()}

	if _, err := s.CompleteGeneration(ctx, params); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	res, err := s.CompleteGeneration(ctx, params)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !res.AlreadyComplete {
		t.Error("second commit should report AlreadyComplete")
	}

	files, _ := s.VersionFiles(ctx, v.ID)
	if len(files) != 3 {
		t.Errorf("files = %d, want 3", len(files))
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Credits != 4 {
		t.Errorf("credits = %d, want exactly one charge", user.Credits)
	}
}

func TestCompleteGeneration_NoCreditsLeft(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 0)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)

	res, err := s.CompleteGeneration(ctx, CompleteParams{VersionID: v.ID, ProjectID: p.ID, UserID: u.ID, Files: sampleFiles()})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Charged {
		t.Error("charged a user with zero credits")
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Credits != 0 {
		t.Errorf("credits = %d, want 0", user.Credits)
	}
}

func TestCompleteGeneration_DuplicatePathRollsBack(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 1)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)

	files := append(sampleFiles(), File{Path: "src/app/page.tsx", Content: "dup", Type: "page"})
	if _, err := s.CompleteGeneration(ctx, CompleteParams{VersionID: v.ID, ProjectID: p.ID, UserID: u.ID, Files: files}); err == nil {
		t.Fatal("expected unique violation")
	}

	got, _ := s.VersionFiles(ctx, v.ID)
	if len(got) != 0 {
		t.Errorf("partial insert visible: %d files", len(got))
	}
	status, _ := s.VersionStatus(ctx, v.ID)
	if status != VersionGenerating {
		t.Errorf("status = %s, want generating", status)
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Credits != 1 {
		t.Errorf("credits = %d, want 1", user.Credits)
	}
}

func TestFailGeneration(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 3)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)

	if err := s.FailGeneration(ctx, FailParams{VersionID: v.ID, ProjectID: p.ID, Message: "components: upstream refused", Elapsed: time.Second}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := s.GetVersion(ctx, v.ID)
	if got.Status != VersionError || got.Error == "" || got.ElapsedMS != 1000 {
		t.Errorf("version = %+v", got)
	}
	proj, _ := s.GetProject(ctx, p.ID)
	if proj.Status != ProjectError {
		t.Errorf("project status = %s", proj.Status)
	}
	user, _ := s.GetUser(ctx, u.ID)
	if user.Credits != 3 {
		t.Errorf("credits = %d, want unchanged 3", user.Credits)
	}

	if _, err := s.CompleteGeneration(ctx, CompleteParams{VersionID: v.ID, ProjectID: p.ID, UserID: u.ID}); !errors.Is(err, ErrVersionClosed) {
		t.Errorf("complete after fail: got %v, want ErrVersionClosed", err)
	}
}

func TestFailGeneration_DoesNotOverwriteComplete(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 1)
	ctx := context.Background()
	v, _ := s.CreateVersion(ctx, p.ID, TriggerGeneration)
	_, _ = s.CompleteGeneration(ctx, CompleteParams{VersionID: v.ID, ProjectID: p.ID, UserID: u.ID, Files: sampleFiles()})

	if err := s.FailGeneration(ctx, FailParams{VersionID: v.ID, ProjectID: p.ID, Message: "late"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	status, _ := s.VersionStatus(ctx, v.ID)
	if status != VersionComplete {
		t.Errorf("status = %s, want complete", status)
	}
}

func TestEditVersionLifecycle(t *testing.T) {
	s := openTestStore(t)
	_, p := seedProject(t, s, 1)
	ctx := context.Background()

	v, err := s.CreateVersion(ctx, p.ID, TriggerEdit)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	proj, _ := s.GetProject(ctx, p.ID)
	if proj.Status != ProjectDraft {
		t.Errorf("edit version changed project status to %s", proj.Status)
	}
	if err := s.CompleteEdit(ctx, v.ID, sampleFiles(), 0); err != nil {
		t.Fatalf("complete edit: %v", err)
	}
	latest, err := s.LatestVersion(ctx, p.ID)
	if err != nil || latest.ID != v.ID || latest.Status != VersionComplete || latest.Trigger != TriggerEdit {
		t.Errorf("latest = %+v, %v", latest, err)
	}

	byNum, err := s.VersionByNumber(ctx, p.ID, 1)
	if err != nil || byNum.ID != v.ID {
		t.Errorf("by number = %+v, %v", byNum, err)
	}

	v2, _ := s.CreateVersion(ctx, p.ID, TriggerEdit)
	if err := s.DeleteVersion(ctx, v2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetVersion(ctx, v2.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted version still readable: %v", err)
	}
	versions, _ := s.ListVersions(ctx, p.ID)
	if len(versions) != 1 {
		t.Errorf("versions = %d, want 1", len(versions))
	}
}

func TestLatestVersion_NoneIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, p := seedProject(t, s, 1)
	if _, err := s.LatestVersion(context.Background(), p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestProjects_ListAndStatus(t *testing.T) {
	s := openTestStore(t)
	u, p := seedProject(t, s, 1)
	ctx := context.Background()

	if err := s.SetProjectStatus(ctx, p.ID, ProjectError); err != nil {
		t.Fatalf("set status: %v", err)
	}
	list, err := s.ListProjects(ctx, u.ID)
	if err != nil || len(list) != 1 || list[0].Status != ProjectError {
		t.Errorf("list = %+v, %v", list, err)
	}
	if err := s.SetProjectStatus(ctx, "missing", ProjectDraft); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing project: got %v", err)
	}
	if _, err := s.GetProject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing: got %v", err)
	}
}
