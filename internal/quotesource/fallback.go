package quotesource

// fallbackQuotes is served whenever the remote API cannot answer.
var fallbackQuotes = []Quote{
	{Text: "Be the change you wish to see in the world.", Author: "Mahatma Gandhi"},
	{Text: "The only way to do great work is to love what you do.", Author: "Steve Jobs"},
	{Text: "Life is what happens when you're busy making other plans.", Author: "John Lennon"},
	{Text: "Success is not final, failure is not fatal.", Author: "Winston Churchill"},
	{Text: "The future belongs to those who believe in the beauty of their dreams.", Author: "Eleanor Roosevelt"},
	{Text: "Imagination is more important than knowledge.", Author: "Albert Einstein"},
	{Text: "The best way to predict the future is to create it.", Author: "Peter Drucker"},
	{Text: "Everything you can imagine is real.", Author: "Pablo Picasso"},
}
