package citybot

// State keys.
const (
	KeyUserName     = "UserName"
	KeyCity         = "City"
	KeyUserWelcomed = "UserWelcomed"
)

// HelpMessage lists the commands the bot understands.
const HelpMessage = "\n * If you want to know which city I'm using for my searches type 'current city'. " +
	"\n * Want to change the current city? Type 'change city to cityName'. " +
	"\n * Want to change it just for your searches? Type 'change my city to cityName'"

const (
	msgCityInitialized = "Welcome to the Search City bot. I'm currently configured to search for things in %s"
	msgGreetPrompt     = "Before get started, please tell me your name?"
	msgGreetDone       = "Welcome %s! %s"
	msgWelcomeBack     = "Welcome back %s! Remember the rules: %s"
	msgSearching       = "%s, wait a few seconds. Searching for '%s' in '%s'..."
	msgReset           = "Ups... I'm suffering from a memory loss..."
	msgCityOverridden  = "%s, you have overridden the city. Your searches are for things in %s. The default conversation city is %s."
	msgCurrentCity     = "Hey %s, I'm currently configured to search for things in %s."
	msgCityChanged     = "All set %s. From now on, all my searches will be for things in %s."
	msgMyCityChanged   = "All set %s. I have overridden the city to %s just for you"
	msgCityMissing     = "%s, which city? Type '%s cityName'."
)
