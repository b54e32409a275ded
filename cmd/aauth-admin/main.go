package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/aauth"
	"github.com/oarkflow/aauth/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "migrate":
		handleMigrate()
	case "seed":
		handleSeed()
	case "tree":
		handleTree()
	case "check":
		handleCheck()
	case "validate-rule":
		handleValidateRule()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("aauth-admin - Administration tool for aauth")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  aauth-admin migrate <db>                              - Create the schema")
	fmt.Println("  aauth-admin seed <db>                                 - Load a demo organization")
	fmt.Println("  aauth-admin tree <db>                                 - Print the organization tree")
	fmt.Println("  aauth-admin check <db> <user> <role> <perm> [args...] - Run a permission check")
	fmt.Println("  aauth-admin validate-rule <file>                      - Validate an ABAC rule file")
}

func openDB(path string) *squealx.DB {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	return squealx.NewDb(sqlDB, "sqlite", "aauth")
}

func newService(db *squealx.DB) *aauth.Service {
	svc, err := aauth.New(
		stores.NewSQLOrganizationStore(db),
		stores.NewSQLRoleStore(db),
		stores.NewSQLAssignmentStore(db),
		stores.NewSQLRuleStore(db),
		stores.NewSQLUserDirectory(db),
	)
	if err != nil {
		fmt.Printf("Error wiring service: %v\n", err)
		os.Exit(1)
	}
	return svc
}

func handleMigrate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: aauth-admin migrate <db>")
		os.Exit(1)
	}
	db := openDB(os.Args[2])
	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error running migrations: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema is up to date")
}

func handleSeed() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: aauth-admin seed <db>")
		os.Exit(1)
	}
	db := openDB(os.Args[2])
	if err := stores.Migrate(db); err != nil {
		fmt.Printf("Error running migrations: %v\n", err)
		os.Exit(1)
	}
	svc := newService(db)
	ctx := context.Background()

	if _, err := db.NamedExecContext(ctx, `INSERT INTO users(id, email, is_super_admin) VALUES(:id, :email, 0)`,
		map[string]any{"id": 1, "email": "admin@example.com"}); err != nil {
		fmt.Printf("Error seeding user: %v\n", err)
		os.Exit(1)
	}

	orgs := svc.Organizations()
	scope := &aauth.OrganizationScope{Name: "Branch", Level: 1, Status: aauth.StatusActive}
	if err := orgs.CreateScope(ctx, scope); err != nil {
		fmt.Printf("Error creating scope: %v\n", err)
		os.Exit(1)
	}
	root, err := orgs.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "Head Office"})
	if err != nil {
		fmt.Printf("Error creating node: %v\n", err)
		os.Exit(1)
	}
	east, err := orgs.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "East", ParentID: &root.ID})
	if err != nil {
		fmt.Printf("Error creating node: %v\n", err)
		os.Exit(1)
	}
	if _, err := orgs.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "West", ParentID: &root.ID}); err != nil {
		fmt.Printf("Error creating node: %v\n", err)
		os.Exit(1)
	}

	role := &aauth.Role{ScopeID: &scope.ID, Name: "branch-manager", Status: aauth.StatusActive}
	if err := svc.CreateRole(ctx, role); err != nil {
		fmt.Printf("Error creating role: %v\n", err)
		os.Exit(1)
	}
	if err := svc.AttachPermission(ctx, role.ID, "reports.view", nil); err != nil {
		fmt.Printf("Error attaching permission: %v\n", err)
		os.Exit(1)
	}
	if err := svc.AttachOrganizationRole(ctx, east.ID, role.ID, 1); err != nil {
		fmt.Printf("Error assigning role: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Seeded demo data")
	fmt.Printf("  User:  1 (admin@example.com)\n")
	fmt.Printf("  Role:  %d (branch-manager)\n", role.ID)
	fmt.Printf("  Nodes: %s, %s\n", root.Path, east.Path)
}

func handleTree() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: aauth-admin tree <db>")
		os.Exit(1)
	}
	db := openDB(os.Args[2])
	store := stores.NewSQLOrganizationStore(db)
	nodes, err := store.SelectNodes(context.Background(), nil, "")
	if err != nil {
		fmt.Printf("Error listing nodes: %v\n", err)
		os.Exit(1)
	}
	if len(nodes) == 0 {
		fmt.Println("No organization nodes")
		return
	}
	for _, node := range nodes {
		indent := strings.Repeat("  ", aauth.PathDepth(node.Path))
		fmt.Printf("%s%s (id=%d path=%s)\n", indent, node.Name, node.ID, node.Path)
	}
}

func handleCheck() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: aauth-admin check <db> <user> <role> <perm> [args...]")
		os.Exit(1)
	}
	db := openDB(os.Args[2])
	userID := parseID(os.Args[3])
	roleID := parseID(os.Args[4])
	permission := os.Args[5]

	args := make([]any, 0, len(os.Args)-6)
	for _, raw := range os.Args[6:] {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			args = append(args, n)
		} else {
			args = append(args, raw)
		}
	}

	ctx := context.Background()
	sess, err := newService(db).Resolve(ctx, userID, roleID)
	if err != nil {
		fmt.Printf("Resolution failed: %v\n", err)
		os.Exit(1)
	}
	ok, err := sess.Can(ctx, permission, args...)
	if err != nil {
		fmt.Printf("Check failed: %v\n", err)
		os.Exit(1)
	}
	if ok {
		fmt.Println("ALLOWED")
	} else {
		fmt.Println("DENIED")
		os.Exit(2)
	}
}

func handleValidateRule() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: aauth-admin validate-rule <file>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	rule, err := aauth.ParseRule(data)
	if err != nil {
		fmt.Printf("Invalid rule: %v\n", err)
		os.Exit(1)
	}
	if err := aauth.ValidateRule(rule, aauth.DefaultMaxRuleDepth); err != nil {
		fmt.Printf("Invalid rule: %v\n", err)
		os.Exit(1)
	}
	clause, params := aauth.Compile(rule).ToSQL("")
	fmt.Println("Rule is valid")
	fmt.Printf("  SQL: %s\n", clause)
	fmt.Printf("  Params: %v\n", params)
}

func parseID(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Printf("Invalid id: %s\n", raw)
		os.Exit(1)
	}
	return n
}
