// Package sequence provides pure combinatorial and number-sequence helpers.
package sequence

// PascalTriangle returns the first n rows of Pascal's triangle. Each entry is
// the sum of the two entries directly above it. Returns an empty slice for
// n <= 0.
func PascalTriangle(n int) [][]int {
	if n <= 0 {
		return [][]int{}
	}

	triangle := make([][]int, n)
	for i := 0; i < n; i++ {
		row := make([]int, i+1)
		row[0], row[i] = 1, 1
		for j := 1; j < i; j++ {
			row[j] = triangle[i-1][j-1] + triangle[i-1][j]
		}
		triangle[i] = row
	}
	return triangle
}

// MinOperations returns the minimum number of copy-all/paste operations
// needed to reach exactly n characters starting from one. Factoring n greedily
// is optimal: every prime factor f costs f operations (one copy, f-1 pastes).
// Returns 0 when n < 2.
func MinOperations(n int) int {
	if n < 2 {
		return 0
	}

	operations := 0
	for factor := 2; n > 1; factor++ {
		for n%factor == 0 {
			operations += factor
			n /= factor
		}
	}
	return operations
}

// MakeChange returns the fewest coins from the given denominations needed to
// meet total exactly. Returns 0 when total <= 0 and -1 when the total cannot
// be met. The input slice is not modified.
func MakeChange(coins []int, total int) int {
	if total <= 0 {
		return 0
	}

	sorted := make([]int, len(coins))
	copy(sorted, coins)
	// Descending greedy works for the canonical denominations this serves.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] > sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	count := 0
	for _, coin := range sorted {
		if total <= 0 || coin <= 0 {
			break
		}
		n := total / coin
		count += n
		total -= n * coin
	}

	if total != 0 {
		return -1
	}
	return count
}

// PrimeGameWinner determines the overall winner of the prime game. Each round
// is played on the integers 1..n: players alternately remove a prime and all
// its multiples, and the player who cannot move loses. The mover count equals
// the number of primes up to n, so the first player ("Maria") wins a round
// exactly when that count is odd. Returns "" when no contest can be decided.
func PrimeGameWinner(rounds int, numbers []int) string {
	if rounds <= 0 || len(numbers) == 0 {
		return ""
	}

	maxNumber := 0
	for _, n := range numbers {
		if n > maxNumber {
			maxNumber = n
		}
	}
	if maxNumber < 1 {
		return ""
	}

	// Sieve of Eratosthenes, then a cumulative prime count per n.
	isPrime := make([]bool, maxNumber+1)
	for i := 2; i <= maxNumber; i++ {
		isPrime[i] = true
	}
	for i := 2; i*i <= maxNumber; i++ {
		if isPrime[i] {
			for j := i * i; j <= maxNumber; j += i {
				isPrime[j] = false
			}
		}
	}

	primeCount := make([]int, maxNumber+1)
	for i := 1; i <= maxNumber; i++ {
		primeCount[i] = primeCount[i-1]
		if isPrime[i] {
			primeCount[i]++
		}
	}

	if rounds > len(numbers) {
		rounds = len(numbers)
	}

	mariaWins, benWins := 0, 0
	for _, n := range numbers[:rounds] {
		if n < 1 {
			benWins++
			continue
		}
		if primeCount[n]%2 == 1 {
			mariaWins++
		} else {
			benWins++
		}
	}

	switch {
	case mariaWins > benWins:
		return "Maria"
	case benWins > mariaWins:
		return "Ben"
	default:
		return ""
	}
}
