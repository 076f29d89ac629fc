package service

import "unicode/utf8"

// SplitChunks режет текст на последовательные куски не длиннее size символов (рун).
// Склейка кусков даёт исходный текст; короче size может быть только последний.
func SplitChunks(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	count, start := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
