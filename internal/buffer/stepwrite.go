package buffer

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// writeStepByStep appends entry across as many chunks as it takes,
// splitting the batch into splitsCount pieces and writing one piece at
// a time. The first target is m's staged chunk; once that (or any
// later target) fills up, it hands off to a freshly generated unstaged
// chunk and keeps going. If a single piece still overflows its chunk,
// splitsCount is multiplied by ten and the whole attempt restarts from
// the top — every chunk touched by the failed attempt is rolled back
// first, since the slice boundaries no longer line up.
func (b *Buffer) writeStepByStep(m *chunk.Metadata, entry WriteEntry, opts WriteOptions, splitsCount int, ops *[]touchedChunk) error {
	total := entry.length()
	if total == 0 {
		return nil
	}

retry:
	for {
		count := splitsCount
		if count > total {
			count = total
		}
		if count < 1 {
			count = 1
		}
		sliceSize := total / count
		if total%count != 0 {
			if count > 1 {
				sliceSize = total / (count - 1)
			} else {
				sliceSize = total
			}
		}
		if sliceSize < 1 {
			sliceSize = 1
		}

		var windows [][2]int
		for lo := 0; lo < total; lo += sliceSize {
			hi := lo + sliceSize
			if hi > total {
				hi = total
			}
			windows = append(windows, [2]int{lo, hi})
		}

		opsStart := len(*ops)

		var modified []touchedChunk
		rollbackModified := func() {
			for _, tc := range modified {
				_ = tc.c.Rollback()
				if tc.c.Unstaged() {
					_ = tc.c.Purge()
				}
				tc.c.Unlock()
			}
			// Entries already appended to *ops for chunks that succeeded
			// earlier in this same attempt are no longer valid once those
			// chunks are rolled back and unlocked above: drop them too,
			// or the commit phase would later Commit/Unlock a chunk this
			// function already unlocked.
			*ops = (*ops)[:opsStart]
		}

		idx := 0
		usedStaged := false

		for idx < len(windows) {
			target, err := b.nextStepTarget(m, !usedStaged)
			if err != nil {
				rollbackModified()
				return err
			}
			usedStaged = true

			target.Lock()
			if !target.Writable() {
				target.Unlock()
				rollbackModified()
				continue retry
			}

			originalBytesize := target.BytesSize()
			chunkFull := false
			enqueueBeforeRetry := false
			needRetry := false

			for idx < len(windows) {
				w := windows[idx]
				we := entry.window(w[0], w[1])

				if err := appendWindow(target, we, opts.Formatter); err != nil {
					if target.Unstaged() {
						_ = target.Purge()
					}
					target.Unlock()
					rollbackModified()
					return err
				}

				if !b.chunkSizeOver(target) {
					idx++
					if b.chunkSizeFull(target) {
						chunkFull = true
						break
					}
					continue
				}

				_ = target.Rollback()
				splitSize := w[1] - w[0]

				if splitSize == 1 && originalBytesize == 0 {
					target.Unlock()
					if target.Unstaged() {
						_ = target.Purge()
					}
					rollbackModified()
					b.metrics.IncChunkOverflow()
					return &ChunkOverflowError{RecordSize: windowByteSize(we, opts.Formatter)}
				}

				if b.chunkSizeFull(target) || splitSize == 1 {
					enqueueBeforeRetry = true
				} else {
					splitsCount *= 10
				}
				needRetry = true
				break
			}

			if needRetry {
				target.Unlock()
				rollbackModified()
				if enqueueBeforeRetry {
					if err := b.EnqueueChunk(m); err != nil {
						return err
					}
				}
				b.metrics.IncSplitRetry()
				continue retry
			}

			delta := target.BytesSize() - originalBytesize
			tc := touchedChunk{target, delta}
			*ops = append(*ops, tc)
			modified = append(modified, tc)

			if chunkFull && idx < len(windows) {
				continue
			}
		}

		return nil
	}
}
