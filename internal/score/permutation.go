package score

// PositivePermutations lists the orderings of an analogy quadruple
// (a, b, c, d) that preserve its validity: swapping within both pairs,
// swapping the pairs, and exchanging the inner terms, plus their
// compositions.
var PositivePermutations = [8][4]int{
	{0, 1, 2, 3},
	{1, 0, 3, 2},
	{2, 3, 0, 1},
	{3, 2, 1, 0},
	{0, 2, 1, 3},
	{2, 0, 3, 1},
	{1, 3, 0, 2},
	{3, 1, 2, 0},
}

// NegativePermutations lists orderings that break the analogy. A good
// candidate should score high on the positive orderings and low on these.
var NegativePermutations = [12][4]int{
	{0, 1, 3, 2},
	{1, 0, 2, 3},
	{2, 3, 1, 0},
	{3, 2, 0, 1},
	{0, 3, 1, 2},
	{3, 0, 2, 1},
	{1, 2, 0, 3},
	{2, 1, 3, 0},
	{0, 3, 2, 1},
	{3, 0, 1, 2},
	{1, 2, 3, 0},
	{2, 1, 0, 3},
}

// Permute reorders the quadruple so that slot i holds q[perm[i]].
func Permute(q [4]string, perm [4]int) [4]string {
	return [4]string{q[perm[0]], q[perm[1]], q[perm[2]], q[perm[3]]}
}
