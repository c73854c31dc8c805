package matcher

import "bytes"

// DefaultBlockSize is the block size used for vectored scans when none is
// configured.
const DefaultBlockSize = 1 << 20

// SplitBlocks splits content into blocks of at most maxBlock bytes for a
// vectored scan, cutting after the last newline in each window when there is
// one. Blocks are sub-slices of content and cover it exactly, so vectored
// offsets equal offsets into content. Empty content yields one empty block.
func SplitBlocks(content []byte, maxBlock int) [][]byte {
	if maxBlock <= 0 || len(content) <= maxBlock {
		return [][]byte{content}
	}

	blocks := make([][]byte, 0, len(content)/maxBlock+1)
	for len(content) > maxBlock {
		cut := maxBlock
		if nl := bytes.LastIndexByte(content[:maxBlock], '\n'); nl >= 0 {
			cut = nl + 1
		}
		blocks = append(blocks, content[:cut:cut])
		content = content[cut:]
	}
	if len(content) > 0 {
		blocks = append(blocks, content)
	}
	return blocks
}
