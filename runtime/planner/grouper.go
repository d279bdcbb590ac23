package planner

import (
	"sort"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
)

// Group is a set of statements of one concurrent block that are connected
// through shared channels, together with every channel they touch.
type Group struct {
	Channels []ChannelRef
	Stmts    []ast.Stmt
}

// unionFind is a disjoint-set forest over channel indices.
type unionFind struct {
	parent []int
	rank   []int
}

func (u *unionFind) add() int {
	u.parent = append(u.parent, len(u.parent))
	u.rank = append(u.rank, 0)
	return len(u.parent) - 1
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// GroupStatements partitions stmts into channel-connected groups. Two
// statements share a group iff a chain of shared channels links them;
// statements without channels form one unchannelled group. Statements keep
// their program order within a group. Groups are ordered by their sorted
// channel lists, the unchannelled group first.
func (r *Run) GroupStatements(stmts []ast.Stmt) []Group {
	uf := &unionFind{}
	ids := make(map[ChannelRef]int)
	stmtChannels := make([][]ChannelRef, len(stmts))

	for i, stmt := range stmts {
		refs := r.channels.Find(stmt)
		stmtChannels[i] = refs
		for _, ref := range refs {
			if _, ok := ids[ref]; !ok {
				ids[ref] = uf.add()
			}
		}
		for _, ref := range refs[min(1, len(refs)):] {
			uf.union(ids[refs[0]], ids[ref])
		}
	}

	const unchannelled = -1
	byRoot := make(map[int]*Group)
	var order []int
	for i, stmt := range stmts {
		root := unchannelled
		if len(stmtChannels[i]) > 0 {
			root = uf.find(ids[stmtChannels[i][0]])
		}
		g, ok := byRoot[root]
		if !ok {
			g = &Group{}
			byRoot[root] = g
			order = append(order, root)
		}
		g.Stmts = append(g.Stmts, stmt)
	}

	for ref, id := range ids {
		root := uf.find(id)
		byRoot[root].Channels = append(byRoot[root].Channels, ref)
	}

	groups := make([]Group, 0, len(order))
	total := 0
	for _, root := range order {
		g := byRoot[root]
		SortChannels(g.Channels)
		groups = append(groups, *g)
		total += len(g.Stmts)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return lessChannelList(groups[i].Channels, groups[j].Channels)
	})

	invariant.Postcondition(total == len(stmts), "grouping lost statements: %d in, %d out", len(stmts), total)
	return groups
}

// Group rewrites every concurrent block in body so that its direct children
// are one Seq per group. Already grouped blocks are left unchanged.
func (r *Run) Group(body []ast.Stmt) {
	r.debug("enter_group", "")
	r.forEachConcur(body, func(c *ast.Concur) {
		groups := r.GroupStatements(c.Body)
		grouped := make([]ast.Stmt, 0, len(groups))
		changed := len(groups) != len(c.Body)
		for i, g := range groups {
			seq := asSeq(c.Pos, g)
			if !changed && seq != c.Body[i] {
				changed = true
			}
			grouped = append(grouped, seq)
		}
		if !changed {
			return
		}
		c.Body = grouped
		if r.telemetry != nil {
			r.telemetry.Groups += len(groups)
		}
		r.logger.Debug("grouped concurrent block", "pos", c.Pos.String(), "groups", len(groups))
	})
}

// asSeq wraps a group in a Seq, reusing an existing Seq that already covers
// exactly this group.
func asSeq(pos ast.Position, g Group) *ast.Seq {
	names := make([]string, len(g.Channels))
	for i, ch := range g.Channels {
		names[i] = string(ch)
	}
	if len(g.Stmts) == 1 {
		if seq, ok := g.Stmts[0].(*ast.Seq); ok && equalStrings(seq.Channels, names) {
			return seq
		}
	}
	return &ast.Seq{Pos: pos, Channels: names, Body: g.Stmts}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// forEachConcur calls fn for every outermost concurrent block in body.
func (r *Run) forEachConcur(body []ast.Stmt, fn func(*ast.Concur)) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Concur:
			fn(s)
		case *ast.For:
			r.forEachConcur(s.Body, fn)
			r.forEachConcur(s.Else, fn)
		case *ast.If:
			r.forEachConcur(s.Body, fn)
			r.forEachConcur(s.Else, fn)
		case *ast.Seq:
			r.forEachConcur(s.Body, fn)
		}
	}
}
