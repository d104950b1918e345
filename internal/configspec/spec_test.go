package configspec

import (
	"context"
	"errors"
	"testing"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/vtree"
)

const viewRoot = "/view"

func mustParse(t *testing.T, text string, dynamic bool) *Spec {
	t.Helper()

	spec, err := ParseString(viewRoot, text)
	if err != nil {
		t.Fatalf("ParseString(): %v", err)
	}
	spec.SetViewIsDynamic(dynamic)
	return spec
}

func mustTree(t *testing.T, versions ...string) *vtree.Tree {
	t.Helper()

	tree := vtree.New()
	for _, v := range versions {
		if err := tree.AddVersion(v); err != nil {
			t.Fatalf("AddVersion(%q): %v", v, err)
		}
	}
	return tree
}

func releaseTree(t *testing.T) *vtree.Tree {
	return mustTree(t,
		"main/0", "main/1", "main/2", "main/3",
		"main/release/0", "main/release/1",
	)
}

func wholeName(v *vtree.Version) string {
	if v == nil {
		return ""
	}
	return v.WholeName()
}

const scenarioSpec = `
element * CHECKEDOUT
element * .../release/LATEST
element * /main/LATEST
`

func TestCurrentVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		spec   string
		tree   func(*testing.T) *vtree.Tree
		path   string
		isFile bool
		want   string
	}{
		{
			name:   "checkedout_never_matches",
			spec:   scenarioSpec,
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
			want:   "/main/release/1",
		},
		{
			name:   "exact_ordinal",
			spec:   "element * /main/2",
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
			want:   "/main/2",
		},
		{
			name:   "missing_ordinal",
			spec:   "element * /main/9",
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
		},
		{
			name:   "first_match_wins",
			spec:   "element * /main/1\nelement * /main/LATEST",
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
			want:   "/main/1",
		},
		{
			name:   "later_rule_when_first_finds_nothing",
			spec:   "element * /main/br/LATEST\nelement * /main/LATEST",
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
			want:   "/main/3",
		},
		{
			name:   "scope_excludes_files",
			spec:   "element -directory * /main/LATEST\nelement -directory * .../release/LATEST",
			tree:   releaseTree,
			path:   "/view/vobs/dir",
			isFile: true,
		},
		{
			name:   "scope_matches_directories",
			spec:   "element -directory * /main/LATEST",
			tree:   releaseTree,
			path:   "/view/vobs/dir",
			isFile: false,
			want:   "/main/3",
		},
		{
			name:   "path_pattern",
			spec:   "element /view/vobs/lib/... /main/1\nelement * /main/LATEST",
			tree:   releaseTree,
			path:   "/view/vobs/lib/x/y.c",
			isFile: true,
			want:   "/main/1",
		},
		{
			name: "label",
			spec: "element * REL_1\nelement * /main/LATEST",
			tree: func(t *testing.T) *vtree.Tree {
				return mustTree(t, "main/0", "main/1", "main/2 (REL_1)", "main/3")
			},
			path:   "/view/vobs/a.c",
			isFile: true,
			want:   "/main/2",
		},
		{
			name:   "query_selector_never_matches",
			spec:   "element * {lbtype(REL_1)}",
			tree:   releaseTree,
			path:   "/view/vobs/a.c",
			isFile: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec := mustParse(t, tt.spec, true)
			got, err := spec.CurrentVersion(viewRoot, tt.path, tt.tree(t), tt.isFile)
			if err != nil {
				t.Fatalf("CurrentVersion(): %v", err)
			}
			if name := wholeName(got); name != tt.want {
				t.Fatalf("CurrentVersion() = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestCurrentVersionAmbiguous(t *testing.T) {
	t.Parallel()

	spec := mustParse(t, "element * */LATEST", true)
	tree := mustTree(t, "main/0", "main/1", "main/a/0", "main/a/1")

	_, err := spec.CurrentVersion(viewRoot, "/view/vobs/a.c", tree, true)
	var amb *AmbiguousVersionError
	if !errors.As(err, &amb) {
		t.Fatalf("CurrentVersion() error = %v, want AmbiguousVersionError", err)
	}
	want := `Version of "/view/vobs/a.c" is ambiguous: /main/1; /main/a/1.`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCurrentVersionLoadRules(t *testing.T) {
	t.Parallel()

	text := "element * /main/LATEST\nload vobs/proj"
	tree := releaseTree(t)

	tests := []struct {
		path    string
		dynamic bool
		want    string
	}{
		{path: "/view/vobs/proj/a.c", want: "/main/3"},
		{path: "/view/vobs", want: "/main/3"},
		{path: "vobs/proj/sub/a.c", want: "/main/3"},
		{path: "/view/vobs/other/a.c", want: ""},
		{path: "/view/vobs/projx", want: ""},
		{path: "/view/vobs/other/a.c", dynamic: true, want: "/main/3"},
	}
	for _, tt := range tests {
		spec := mustParse(t, text, tt.dynamic)
		got, err := spec.CurrentVersion(viewRoot, tt.path, tree, true)
		if err != nil {
			t.Fatalf("CurrentVersion(%q): %v", tt.path, err)
		}
		if name := wholeName(got); name != tt.want {
			t.Fatalf("CurrentVersion(%q, dynamic=%v) = %q, want %q", tt.path, tt.dynamic, name, tt.want)
		}
	}
}

type fakeFinder struct {
	trees map[string]*vtree.Tree
	calls int
}

func (f *fakeFinder) FindVersion(_ context.Context, objectPath, version string, _ bool) (*vtree.Version, error) {
	f.calls++
	tree, ok := f.trees[objectPath]
	if !ok {
		return nil, nil
	}
	return tree.FindVersionByPath(version), nil
}

func TestIsVersionInsideView(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		tree func(*testing.T) *vtree.Tree
		path string
		want bool
	}{
		{
			name: "selected_branch",
			spec: scenarioSpec,
			tree: releaseTree,
			path: "/view/vobs/a.c@@/main/release/1",
			want: true,
		},
		{
			name: "any_version_on_latest_branch",
			spec: scenarioSpec,
			tree: releaseTree,
			path: "/view/vobs/a.c@@/main/release/0",
			want: true,
		},
		{
			name: "shadowed_by_release_branch",
			spec: scenarioSpec,
			tree: releaseTree,
			path: "/view/vobs/a.c@@/main/2",
			want: false,
		},
		{
			name: "falls_through_without_release_branch",
			spec: scenarioSpec,
			tree: func(t *testing.T) *vtree.Tree { return mustTree(t, "main/0", "main/1", "main/2") },
			path: "/view/vobs/a.c@@/main/2",
			want: true,
		},
		{
			name: "unknown_version",
			spec: scenarioSpec,
			tree: releaseTree,
			path: "/view/vobs/a.c@@/main/9",
			want: false,
		},
		{
			name: "exact_ordinal_mismatch",
			spec: "element * /main/1",
			tree: releaseTree,
			path: "/view/vobs/a.c@@/main/2",
			want: false,
		},
		{
			name: "label",
			spec: "element * REL_1",
			tree: func(t *testing.T) *vtree.Tree { return mustTree(t, "main/0", "main/1 (REL_1)") },
			path: "/view/vobs/a.c@@/main/1",
			want: true,
		},
		{
			name: "unversioned_path",
			spec: scenarioSpec,
			tree: releaseTree,
			path: "/view/vobs/a.c",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec := mustParse(t, tt.spec, true)
			finder := &fakeFinder{trees: map[string]*vtree.Tree{"/view/vobs/a.c": tt.tree(t)}}
			got, err := spec.IsVersionInsideView(context.Background(), finder, viewRoot, ccpath.Split(tt.path), true)
			if err != nil {
				t.Fatalf("IsVersionInsideView(): %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsVersionInsideView(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsVersionInsideViewVersionedDirectories(t *testing.T) {
	t.Parallel()

	spec := mustParse(t, "element * /main/LATEST\nload vobs", false)
	finder := &fakeFinder{trees: map[string]*vtree.Tree{
		"/view/vobs/dir":               mustTree(t, "main/0", "main/1"),
		"/view/vobs/dir@@/main/1/f.c":  mustTree(t, "main/0", "main/1", "main/2"),
		"/view/other/dir":              mustTree(t, "main/0", "main/1"),
		"/view/other/dir@@/main/1/f.c": mustTree(t, "main/0"),
	}}

	got, err := spec.IsVersionInsideView(context.Background(), finder, viewRoot, ccpath.Split("/view/vobs/dir@@/main/1/f.c@@/main/2"), true)
	if err != nil {
		t.Fatalf("IsVersionInsideView(): %v", err)
	}
	if !got {
		t.Fatal("IsVersionInsideView() = false, want true")
	}
	if finder.calls != 2 {
		t.Fatalf("FindVersion calls = %d, want 2", finder.calls)
	}

	got, err = spec.IsVersionInsideView(context.Background(), finder, viewRoot, ccpath.Split("/view/other/dir@@/main/1/f.c@@/main/0"), true)
	if err != nil {
		t.Fatalf("IsVersionInsideView(): %v", err)
	}
	if got {
		t.Fatal("IsVersionInsideView() outside load rules = true, want false")
	}
}

func TestIsVersionInsideViewFinderError(t *testing.T) {
	t.Parallel()

	spec := mustParse(t, scenarioSpec, true)
	boom := errors.New("cleartool died")
	finder := finderFunc(func(context.Context, string, string, bool) (*vtree.Version, error) { return nil, boom })
	_, err := spec.IsVersionInsideView(context.Background(), finder, viewRoot, ccpath.Split("/view/a.c@@/main/1"), true)
	if !errors.Is(err, boom) {
		t.Fatalf("IsVersionInsideView() error = %v, want %v", err, boom)
	}
}

type finderFunc func(ctx context.Context, objectPath, version string, isDir bool) (*vtree.Version, error)

func (f finderFunc) FindVersion(ctx context.Context, objectPath, version string, isDir bool) (*vtree.Version, error) {
	return f(ctx, objectPath, version, isDir)
}

func TestIsVersionInsideViewMkBranch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		path string
		want bool
	}{
		{
			name: "made_branch_restarts_then_converges",
			spec: "element * /main/LATEST -mkbranch dev2\nelement * .../dev2/LATEST",
			path: "/view/a.c@@/main/2",
			want: false,
		},
		{
			name: "chained_mkbranch_rules_terminate",
			spec: "element * /main/LATEST -mkbranch a\nelement * /main/LATEST -mkbranch b\nelement * /main/LATEST -mkbranch a",
			path: "/view/a.c@@/main/2",
			want: false,
		},
		{
			name: "existing_branch_version_is_selected",
			spec: "element * .../dev/LATEST\nelement * /main/LATEST -mkbranch dev",
			path: "/view/a.c@@/main/dev/1",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := mustTree(t, "main/0", "main/1", "main/dev/0", "main/dev/1", "main/2")
			// dev sprouts from /main/1, leaving /main/2 without sub-branches.
			spec := mustParse(t, tt.spec, true)
			finder := &fakeFinder{trees: map[string]*vtree.Tree{"/view/a.c": tree}}
			elements := ccpath.Split(tt.path)

			first, err := spec.IsVersionInsideView(context.Background(), finder, viewRoot, elements, true)
			if err != nil {
				t.Fatalf("IsVersionInsideView(): %v", err)
			}
			second, err := spec.IsVersionInsideView(context.Background(), finder, viewRoot, elements, true)
			if err != nil {
				t.Fatalf("IsVersionInsideView(): %v", err)
			}
			if first != tt.want || second != tt.want {
				t.Fatalf("IsVersionInsideView() = %v then %v, want %v", first, second, tt.want)
			}
			if got := len(tree.FindVersionByPath("/main/2").InheritedBranches()); got != 0 {
				t.Fatalf("/main/2 gained %d branches, want 0", got)
			}
		})
	}
}

func TestCurrentVersionDeterministic(t *testing.T) {
	t.Parallel()

	spec := mustParse(t, scenarioSpec, true)
	tree := releaseTree(t)
	for i := 0; i < 5; i++ {
		got, err := spec.CurrentVersion(viewRoot, "/view/vobs/a.c", tree, true)
		if err != nil {
			t.Fatalf("CurrentVersion(): %v", err)
		}
		if name := wholeName(got); name != "/main/release/1" {
			t.Fatalf("CurrentVersion() run %d = %q", i, name)
		}
	}
}
