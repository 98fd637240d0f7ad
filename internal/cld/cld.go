// Package cld computes compact letter displays.
//
// Groups are vertices of a graph with an edge between every pair that is not
// significantly different. Each maximal clique of that graph receives one
// letter, so two groups share a letter exactly when they are not
// significantly different.
package cld

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Letters assigns letters to n groups. means orders the cliques (highest
// mean first, ties by earliest group); differs reports whether groups i and
// j are significantly different. The result is indexed like means.
func Letters(means []float64, differs func(i, j int) bool) []string {
	n := len(means)
	if n == 0 {
		return nil
	}
	adj := make([]mapset.Set[int], n)
	for i := range adj {
		adj[i] = mapset.NewThreadUnsafeSet[int]()
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !differs(i, j) {
				adj[i].Add(j)
				adj[j].Add(i)
			}
		}
	}

	all := mapset.NewThreadUnsafeSet[int]()
	for i := 0; i < n; i++ {
		all.Add(i)
	}
	var cliques [][]int
	bronKerbosch(adj, mapset.NewThreadUnsafeSet[int](), all, mapset.NewThreadUnsafeSet[int](), func(c mapset.Set[int]) {
		members := c.ToSlice()
		sort.Ints(members)
		cliques = append(cliques, members)
	})

	sort.SliceStable(cliques, func(a, b int) bool {
		ma, mb := maxMean(means, cliques[a]), maxMean(means, cliques[b])
		if ma != mb {
			return ma > mb
		}
		return cliques[a][0] < cliques[b][0]
	})

	out := make([]string, n)
	for li, c := range cliques {
		l := Label(li)
		for _, g := range c {
			out[g] += l
		}
	}
	return out
}

// bronKerbosch enumerates the maximal cliques containing r, extended from p
// and excluding x, pivoting on the vertex of p∪x with most neighbours in p.
func bronKerbosch(adj []mapset.Set[int], r, p, x mapset.Set[int], emit func(mapset.Set[int])) {
	if p.Cardinality() == 0 {
		if x.Cardinality() == 0 {
			emit(r)
		}
		return
	}

	pivot, best := -1, -1
	for _, u := range sorted(p.Union(x)) {
		if c := p.Intersect(adj[u]).Cardinality(); c > best {
			pivot, best = u, c
		}
	}

	for _, v := range sorted(p.Difference(adj[pivot])) {
		nr := r.Clone()
		nr.Add(v)
		bronKerbosch(adj, nr, p.Intersect(adj[v]), x.Intersect(adj[v]), emit)
		p.Remove(v)
		x.Add(v)
	}
}

func sorted(s mapset.Set[int]) []int {
	v := s.ToSlice()
	sort.Ints(v)
	return v
}

func maxMean(means []float64, members []int) float64 {
	m := means[members[0]]
	for _, g := range members[1:] {
		if means[g] > m {
			m = means[g]
		}
	}
	return m
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Label returns the i-th letter: a..z, A..Z, then aa, ab, ... az, ba, ...
func Label(i int) string {
	if i < len(alphabet) {
		return alphabet[i : i+1]
	}
	// Bijective base 26 over the lower-case letters, starting at "aa".
	v := i - len(alphabet) + 27
	var b []byte
	for v > 0 {
		v--
		b = append([]byte{alphabet[v%26]}, b...)
		v /= 26
	}
	return string(b)
}
