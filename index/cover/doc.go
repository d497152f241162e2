// Package cover provides a cover-tree index over internal/cover/tree. Search
// is exact under the per-node bound: cosine is served by inserting unit
// vectors into a euclidean tree, since both rank identically. Removal
// tombstones slots and the tree is compacted once tombstones dominate.
package cover
