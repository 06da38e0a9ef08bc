package constants

// Classification is the three-way verdict for a scored container.
type Classification string

const (
	Normal          Classification = "normal"
	PotentialZombie Classification = "potential_zombie"
	Zombie          Classification = "zombie"
)

// Composite-score boundaries for classification. The zombie boundary is
// closed: a score of exactly 70 classifies as zombie.
const (
	ZombieScore          = 70.0
	PotentialZombieScore = 40.0
)
