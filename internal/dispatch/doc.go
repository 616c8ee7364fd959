// Пакет dispatch выполняет исходящие вызовы зарегистрированных
// интерфейсов: REST, SOAP и GraphQL.
//
// # Сборка запроса
//
// Запрос собирается в два слоя: настройки интерфейса (базовый URL,
// заголовки, query, Content-Type, таймаут) перекрываются параметрами
// конкретного вызова. Протокол определяет форму тела: REST шлёт JSON,
// SOAP — XML-конверт с заголовком SOAPAction, GraphQL — POST с полями
// query и variables.
//
// # Аутентификация
//
// Порядок разрешения: режим эмуляции (синтетический ответ без сети),
// auth-адаптер (oauth2_client, jwt_assertion) через кеш токенов,
// inline-секрет (api_key, basic, bearer), без аутентификации.
//
// Кеш токенов схлопывает конкурентные запросы одного адаптера в один
// сетевой вызов: первый получает токен, остальные ждут результата.
//
// # Retry
//
// Статусы 408, 429 и 5xx повторяются с настроенной задержкой
// (список переопределяется политикой интерфейса). Ответ 401/403 при
// адаптерной аутентификации сбрасывает кешированный токен и получает
// новый до следующей попытки, без задержки. После исчерпания попыток
// возвращается ErrConnectivity вместе со списком попыток — трейс
// выполнения сохраняет их и при провале.
package dispatch
