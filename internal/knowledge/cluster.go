package knowledge

import (
	"github.com/vthunder/recall/internal/llm"
)

// Clustering constants. ClusterEps is the maximum cosine distance for two
// memories to count as neighbors; MinClusterSize is the density floor.
const (
	ClusterEps         = 0.3
	MinClusterSize     = 2
	CoherenceThreshold = 0.7
	// pairwise similarity is undefined for one member
	singletonCoherence = 0.8
)

// ClusterEmbeddings runs density-based clustering over cosine distance.
// Returns clusters as index lists into the input slice; points in no dense
// region are noise and do not appear in any cluster.
func ClusterEmbeddings(embeddings [][]float64) [][]int {
	n := len(embeddings)
	const (
		unvisited = 0
		noise     = -1
	)
	labels := make([]int, n) // 0 unvisited, -1 noise, >0 cluster id
	nextCluster := 0

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if cosineDistance(embeddings[i], embeddings[j]) <= ClusterEps {
				out = append(out, j)
			}
		}
		return out
	}

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbors(i)
		if len(seeds) < MinClusterSize {
			labels[i] = noise
			continue
		}

		nextCluster++
		labels[i] = nextCluster

		// expand: seeds may grow while iterating
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == noise {
				labels[j] = nextCluster // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextCluster
			more := neighbors(j)
			if len(more) >= MinClusterSize {
				seeds = append(seeds, more...)
			}
		}
	}

	clusters := make(map[int][]int)
	var order []int
	for i, label := range labels {
		if label <= 0 {
			continue
		}
		if _, ok := clusters[label]; !ok {
			order = append(order, label)
		}
		clusters[label] = append(clusters[label], i)
	}

	out := make([][]int, 0, len(order))
	for _, label := range order {
		out = append(out, clusters[label])
	}
	return out
}

// Coherence is the mean pairwise cosine similarity among cluster members
func Coherence(cluster []int, embeddings [][]float64) float64 {
	if len(cluster) < 2 {
		return singletonCoherence
	}
	total, pairs := 0.0, 0
	for i := 0; i < len(cluster); i++ {
		for j := i + 1; j < len(cluster); j++ {
			total += llm.CosineSimilarity(embeddings[cluster[i]], embeddings[cluster[j]])
			pairs++
		}
	}
	return total / float64(pairs)
}

func cosineDistance(a, b []float64) float64 {
	return 1 - llm.CosineSimilarity(a, b)
}
