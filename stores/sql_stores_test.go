package stores

import (
	"context"
	"database/sql"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/aauth"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLOrganizationStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLOrganizationStore(db)
	ctx := context.Background()

	scope := &aauth.OrganizationScope{Name: "Branch", Level: 1, Status: aauth.StatusActive}
	if err := store.CreateScope(ctx, scope); err != nil {
		t.Fatalf("create scope: %v", err)
	}
	if scope.ID == 0 {
		t.Fatalf("scope id not assigned")
	}
	gotScope, err := store.GetScope(ctx, scope.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if gotScope == nil || gotScope.Name != "Branch" || gotScope.Status != aauth.StatusActive {
		t.Fatalf("scope round trip: %+v", gotScope)
	}

	root := &aauth.OrganizationNode{ScopeID: scope.ID, Name: "Head Office", Path: "?"}
	if err := store.CreateNode(ctx, root); err != nil {
		t.Fatalf("create node: %v", err)
	}
	root.Path = aauth.JoinPath("", root.ID)
	if err := store.UpdateNode(ctx, root); err != nil {
		t.Fatalf("patch path: %v", err)
	}

	child := &aauth.OrganizationNode{
		ScopeID: scope.ID, Name: "East", ParentID: &root.ID,
		EntityType: "department", EntityID: 7,
	}
	if err := store.CreateNode(ctx, child); err != nil {
		t.Fatalf("create child: %v", err)
	}
	child.Path = aauth.JoinPath(root.Path+aauth.PathSeparator, child.ID)
	if err := store.UpdateNode(ctx, child); err != nil {
		t.Fatalf("patch child path: %v", err)
	}

	got, err := store.GetNode(ctx, child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.ParentID == nil || *got.ParentID != root.ID || got.Path != child.Path {
		t.Fatalf("child round trip: %+v", got)
	}

	byEntity, err := store.NodeByEntity(ctx, "department", 7)
	if err != nil {
		t.Fatalf("by entity: %v", err)
	}
	if byEntity == nil || byEntity.ID != child.ID {
		t.Fatalf("by entity = %+v", byEntity)
	}

	children, err := store.ChildrenOf(ctx, root.ID)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0].ID != child.ID {
		t.Fatalf("children = %v", children)
	}

	if missing, err := store.GetNode(ctx, 999); err != nil || missing != nil {
		t.Fatalf("missing node: %v %v", missing, err)
	}
}

func TestSQLOrganizationStoreSelectNodesWithFilter(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLOrganizationStore(db)
	ctx := context.Background()

	scope := &aauth.OrganizationScope{Name: "Branch", Status: aauth.StatusActive}
	if err := store.CreateScope(ctx, scope); err != nil {
		t.Fatalf("create scope: %v", err)
	}
	paths := []string{"1", "1/2", "1/2/3", "4"}
	for _, p := range paths {
		node := &aauth.OrganizationNode{ScopeID: scope.ID, Name: p, Path: p}
		if err := store.CreateNode(ctx, node); err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
		node.Path = p
		if err := store.UpdateNode(ctx, node); err != nil {
			t.Fatalf("patch %s: %v", p, err)
		}
	}

	filter := &aauth.Filter{Join: aauth.ConnOr}
	filter.Add(aauth.Condition{Column: "path", Op: aauth.OpLike, Value: "1/%"})
	filter.Add(aauth.Condition{Column: "path", Op: aauth.OpEq, Value: "1"})

	nodes, err := store.SelectNodes(ctx, filter, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("matched %d nodes, want 3", len(nodes))
	}
	for _, n := range nodes {
		if n.Path == "4" {
			t.Fatalf("node outside subtree matched")
		}
	}
}

func TestSQLOrganizationStoreWithinTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLOrganizationStore(db)
	ctx := context.Background()

	scope := &aauth.OrganizationScope{Name: "Branch", Status: aauth.StatusActive}
	if err := store.CreateScope(ctx, scope); err != nil {
		t.Fatalf("create scope: %v", err)
	}

	failed := store.WithinTx(ctx, func(ctx context.Context, tx aauth.OrganizationStore) error {
		if err := tx.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "a", Path: "1"}); err != nil {
			return err
		}
		// duplicate path violates the unique index and aborts the tx
		return tx.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "b", Path: "1"})
	})
	if failed == nil {
		t.Fatalf("expected unique violation")
	}

	nodes, err := store.SelectNodes(ctx, nil, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("rolled-back writes leaked: %d nodes", len(nodes))
	}
}

func TestSQLRoleStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLRoleStore(db)
	ctx := context.Background()

	role := &aauth.Role{Name: "editor", Status: aauth.StatusActive, Tag: "admin-panel"}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("create: %v", err)
	}

	params := aauth.Params{{Name: "max_edits", Value: int64(5)}, {Name: "region", Value: []any{"east"}}}
	if err := store.AttachPermission(ctx, role.ID, "article.edit", params); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := store.AttachPermission(ctx, role.ID, "article.view", nil); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := store.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "editor" || got.Tag != "admin-panel" || !got.IsSystem() {
		t.Fatalf("role round trip: %+v", got)
	}

	perms, err := store.Permissions(ctx, role.ID)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("perms = %d, want 2", len(perms))
	}
	if perms[0].Permission != "article.edit" {
		t.Fatalf("first perm = %s", perms[0].Permission)
	}
	// parameter order survives the JSON column
	if perms[0].Parameters[0].Name != "max_edits" || perms[0].Parameters[1].Name != "region" {
		t.Fatalf("parameter order lost: %+v", perms[0].Parameters)
	}
	if perms[0].Parameters[0].Value != int64(5) {
		t.Fatalf("bound = %v (%T)", perms[0].Parameters[0].Value, perms[0].Parameters[0].Value)
	}

	if err := store.DetachPermission(ctx, role.ID, "article.view"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	perms, _ = store.Permissions(ctx, role.ID)
	if len(perms) != 1 {
		t.Fatalf("perms after detach = %d", len(perms))
	}
}

func TestSQLAssignmentStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLAssignmentStore(db)
	ctx := context.Background()
	node := int64(5)

	a := aauth.Assignment{UserID: 1, RoleID: 2, NodeID: &node}
	if err := store.Assign(ctx, a); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.Assign(ctx, a); err != nil {
		t.Fatalf("re-assign should upsert: %v", err)
	}
	if err := store.Assign(ctx, aauth.Assignment{UserID: 1, RoleID: 3}); err != nil {
		t.Fatalf("assign system: %v", err)
	}

	ok, err := store.HasRole(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("has role: %v %v", ok, err)
	}
	roots, err := store.GrantRoots(ctx, 1, 2)
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	if len(roots) != 1 || roots[0] != 5 {
		t.Fatalf("roots = %v", roots)
	}
	ids, err := store.RoleIDsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("role ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("ids = %v", ids)
	}

	users, err := store.UsersForRole(ctx, 2)
	if err != nil {
		t.Fatalf("users for role: %v", err)
	}
	if len(users) != 1 || users[0] != 1 {
		t.Fatalf("users = %v, want [1]", users)
	}

	if err := store.UnassignNode(ctx, node); err != nil {
		t.Fatalf("unassign node: %v", err)
	}
	if ok, _ := store.HasRole(ctx, 1, 2); ok {
		t.Fatalf("node grant should be gone")
	}
	if ok, _ := store.HasRole(ctx, 1, 3); !ok {
		t.Fatalf("system grant should survive")
	}

	if err := store.UnassignRole(ctx, 3); err != nil {
		t.Fatalf("unassign role: %v", err)
	}
	if ok, _ := store.HasRole(ctx, 1, 3); ok {
		t.Fatalf("role rows should be gone")
	}
}

func TestSQLRuleStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLRuleStore(db)
	ctx := context.Background()

	rule := aauth.And(aauth.Eq("status", "open"), aauth.Or(aauth.Gt("age", 18), aauth.Like("name", "J%")))
	if err := store.SaveRule(ctx, 1, "patient", rule); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Rule(ctx, 1, "patient")
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	if got == nil || got.Connective != aauth.ConnAnd || len(got.Children) != 2 {
		t.Fatalf("round trip: %+v", got)
	}

	// replace on save
	if err := store.SaveRule(ctx, 1, "patient", aauth.Eq("status", "closed")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = store.Rule(ctx, 1, "patient")
	if got.IsGroup() || got.Value != "closed" {
		t.Fatalf("replace lost: %+v", got)
	}

	all, err := store.Rules(ctx, 1)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if len(all) != 1 || all["patient"] == nil {
		t.Fatalf("rules map = %v", all)
	}

	if err := store.DeleteRule(ctx, 1, "patient"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := store.Rule(ctx, 1, "patient"); got != nil {
		t.Fatalf("deleted rule still present")
	}
}

func TestSQLUserDirectory(t *testing.T) {
	db := newTestDB(t)
	dir := NewSQLUserDirectory(db)
	ctx := context.Background()

	if _, err := db.NamedExecContext(ctx, `INSERT INTO users(id, email, is_super_admin) VALUES(:id, :email, :super)`,
		map[string]any{"id": 1, "email": "root@example.com", "super": 1}); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	ok, err := dir.Exists(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}
	if ok, _ := dir.Exists(ctx, 2); ok {
		t.Fatalf("missing user should not exist")
	}

	super, err := dir.Flag(ctx, 1, "is_super_admin")
	if err != nil || !super {
		t.Fatalf("flag: %v %v", super, err)
	}
	if _, err := dir.Flag(ctx, 1, "is_super_admin; DROP TABLE users"); err == nil {
		t.Fatalf("injection-shaped column must be rejected")
	}
}

func TestSQLEntityReaderAppliesFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE patients (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, row := range []map[string]any{
		{"id": 1, "name": "Jane", "age": 30},
		{"id": 2, "name": "Jack", "age": 10},
		{"id": 3, "name": "Kim", "age": 40},
	} {
		if _, err := db.NamedExecContext(ctx, `INSERT INTO patients(id, name, age) VALUES(:id, :name, :age)`, row); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	reader, err := NewSQLEntityReader(db, "patients")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}

	filter := aauth.Compile(aauth.And(aauth.Gte("age", 18), aauth.Like("name", "J%")))
	rows, err := reader.Select(ctx, filter)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Jane" {
		t.Fatalf("rows = %v", rows)
	}

	all, err := reader.Select(ctx, nil)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d", len(all))
	}

	if _, err := NewSQLEntityReader(db, "patients; DROP TABLE users"); err == nil {
		t.Fatalf("injection-shaped table must be rejected")
	}
}
