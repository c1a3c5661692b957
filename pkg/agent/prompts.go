package agent

import "fmt"

// DefaultMemoryGuidelines steers the model toward selective storage.
// Operators can replace it in configuration.
const DefaultMemoryGuidelines = `MEMORY STORAGE GUIDELINES - Be Selective:
STORE in memory:
- User preferences (e.g., "prefers dark mode", "likes Italian food")
- Important facts about the user (e.g., "has a dog named Max", "lives in Seattle")
- Significant decisions or plans (e.g., "planning trip to Japan in spring")
- Recurring requests or patterns (e.g., "always asks for weather at 7am")
- Home automation preferences (e.g., "bedroom lights should be 50% brightness at night")
- Important context that should persist (e.g., "works from home on Mondays")

DO NOT STORE in memory:
- Greetings and casual conversation (e.g., "hello", "how are you", "thanks")
- Simple questions without context (e.g., "what's the weather?")
- One-time requests (e.g., "turn on the kitchen light")
- Temporary information (e.g., "I'm going to the store now")
- General knowledge questions (e.g., "what is the capital of France?")
- System status checks (e.g., "what devices are available?")

When users share important information, proactively store it in memory. When answering questions, retrieve relevant memories to provide contextual, personalized responses.`

const controlInstructions = `

You have access to smart home control through the home_control tool.

CRITICAL RULES FOR USING home_control:
1. The tool requires TWO parameters for most operations:
   - tool_name: The intent name (e.g., "HassTurnOn", "HassGetState")
   - name: The device name (e.g., "kitchen light", "bedroom fan")

2. ALWAYS provide the 'name' parameter when using these intents:
   - Device control: HassTurnOn, HassTurnOff, HassToggle, HassGetState, HassLightSet, HassSetPosition
   - Media control: HassMediaUnpause, HassMediaPause, HassMediaNext, HassMediaPrevious, HassSetVolume
   - Shopping lists: HassListAddItem, HassListRemoveItem (name = list name, e.g., "Shopping List")

3. Only these intents work WITHOUT a 'name' parameter:
   - GetLiveContext (shows all devices)
   - GetDateTime (shows current time)

4. Optional parameters:
   - domain: Device type (e.g., "light", "switch", "fan") - helps identify the right device
   - brightness: For lights, 0-100
   - color: For lights, color name or value

5. SPECIAL CASES:
   - Scenes: Use the scene name directly as a tool if available, OR use HassTurnOn with the full entity_id (e.g., name="scene.movie_night")
   - Scripts: Use the script name directly as a tool if available
   - If a scene/script tool exists with the exact name, prefer using that tool directly

CORRECT EXAMPLES:
- home_control(tool_name="HassTurnOn", name="kitchen light", domain="light")
- home_control(tool_name="HassGetState", name="living room temperature")
- home_control(tool_name="HassListAddItem", name="Shopping List", item="milk")
- home_control(tool_name="GetLiveContext")
- home_control(tool_name="movie_night") - if movie_night is a scene/script tool
- home_control(tool_name="HassTurnOn", name="scene.movie_night") - activate scene by entity_id

WRONG EXAMPLES:
- home_control(tool_name="HassTurnOn") - Missing 'name' parameter!
- home_control(tool_name="HassTurnOn", domain="light") - Still missing 'name'!

If you get an error about "cannot target all devices", it means you forgot to provide the 'name' parameter.
If you get an error about "Failed to call turn_on", the device might not support that action - try checking available tools with GetLiveContext.`

func memoryInstructions(effectiveUserID, guidelines string) string {
	instruction := fmt.Sprintf(`

You have access to a long-term memory system that persists across conversations. Use the memory tool to:
- Store important information about the user (preferences, facts, context)
- Retrieve relevant memories to provide personalized responses
- Remember user preferences and past interactions

IMPORTANT: When using the memory tool, always use user_id=%q to ensure memories are stored and retrieved for the correct user.
`, effectiveUserID)
	if guidelines != "" {
		instruction += "\n" + guidelines
	}
	return instruction
}

// enhancedSystemPrompt appends memory and control guidance to the
// operator's base prompt, matching what the built agent can reach.
func enhancedSystemPrompt(base string, memoryEnabled bool, effectiveUserID, guidelines string, hasControl bool) string {
	prompt := base
	if memoryEnabled {
		prompt += memoryInstructions(effectiveUserID, guidelines)
	}
	if hasControl {
		prompt += controlInstructions
	}
	return prompt
}
