package transport

import (
	"fmt"
	"strconv"
)

// minIndexWidth — минимальная ширина индекса в имени очереди.
const minIndexWidth = 2

// Shard — очередь узла и её часть пространства routing keys.
type Shard struct {
	Index       int      `json:"index"`
	Node        string   `json:"node"`
	Queue       string   `json:"queue"`
	RoutingKeys []string `json:"routing_keys"`
}

// QueueName возвращает имя очереди узла index: prefix и индекс,
// дополненный нулями до max(2, число цифр в nodeCount).
//
//	QueueName("q_", 1, 3)    // "q_01"
//	QueueName("q_", 45, 222) // "q_045"
func QueueName(prefix string, index, nodeCount int) string {
	width := max(minIndexWidth, len(strconv.Itoa(nodeCount)))
	return fmt.Sprintf("%s%0*d", prefix, width, index)
}

// SliceRoutingKeys делит keys на nodeCount непрерывных частей в порядке списка.
//
// Размеры частей отличаются не больше чем на один: первые
// len(keys) % nodeCount частей получают лишний ключ. Если ключей меньше,
// чем узлов, последние части пустые. Каждый ключ попадает ровно в одну часть.
func SliceRoutingKeys(keys []string, nodeCount int) [][]string {
	if nodeCount <= 0 {
		return nil
	}

	slices := make([][]string, nodeCount)
	base, extra := len(keys)/nodeCount, len(keys)%nodeCount

	start := 0
	for i := range slices {
		size := base
		if i < extra {
			size++
		}
		slices[i] = keys[start : start+size : start+size]
		start += size
	}

	return slices
}
