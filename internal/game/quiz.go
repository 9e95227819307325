package game

// Quiz rewards.
const (
	QuizWinReward     = 25
	QuizConsoleReward = 5
)

// Question is one quiz question with four options.
type Question struct {
	Prompt  string
	Answer  string
	Options [4]string
}

// QuizBank is the fixed question set.
var QuizBank = []Question{
	{Prompt: "What is the capital of Egypt?", Answer: "Cairo", Options: [4]string{"Cairo", "Alexandria", "Giza", "Aswan"}},
	{Prompt: "How many colours are in a rainbow?", Answer: "7", Options: [4]string{"5", "6", "7", "8"}},
	{Prompt: "What is the largest ocean in the world?", Answer: "Pacific", Options: [4]string{"Atlantic", "Pacific", "Indian", "Arctic"}},
	{Prompt: "In which year did humans first land on the Moon?", Answer: "1969", Options: [4]string{"1965", "1969", "1972", "1975"}},
	{Prompt: "What is the longest river in the world?", Answer: "Nile", Options: [4]string{"Amazon", "Nile", "Mississippi", "Yangtze"}},
}

// DrawQuestion picks a question uniformly from QuizBank.
func DrawQuestion(r Rand) Question {
	return QuizBank[r.IntN(len(QuizBank))]
}

// Check grades an answer. There is no retry: either way the quiz is over.
func (q Question) Check(choice string) (bool, Outcome) {
	if choice == q.Answer {
		return true, Outcome{Game: Quiz, Reward: QuizWinReward, Reason: "Quiz win", Won: true, Score: QuizWinReward}
	}
	return false, Outcome{Game: Quiz, Reward: QuizConsoleReward, Reason: "Quiz participation"}
}
