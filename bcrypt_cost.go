//go:build !race

package auth

// DefaultPasswordCost is the bcrypt work factor for stored passwords
const DefaultPasswordCost = 10

func passwordHashCost() int {
	return DefaultPasswordCost
}
